package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bytepad-backend/internal/domain"
	apperrors "bytepad-backend/internal/errors"
	"bytepad-backend/internal/service/backend"
	"bytepad-backend/internal/service/syncer"
	"bytepad-backend/pkg/api"
)

// Applier routes a mutation to the authoritative store.
type Applier interface {
	Apply(ctx context.Context, m backend.Mutation) (*backend.Result, error)
}

// SyncService is the sync surface exposed as commands.
type SyncService interface {
	Status() (syncer.Status, error)
	Configure(ctx context.Context, req syncer.ConfigureRequest) (syncer.Status, error)
	CreateRemote(ctx context.Context) (*syncer.Result, error)
	Pull(ctx context.Context, force bool) (*syncer.Result, error)
	Push(ctx context.Context, force bool) (*syncer.Result, error)
	SmartSync(ctx context.Context) (*syncer.Result, error)
}

// AutoSyncState reports whether the auto-sync loop is running.
type AutoSyncState interface {
	Running() bool
}

// Dependencies are the services commands operate on.
type Dependencies struct {
	Backend   Applier
	Sync      SyncService
	Scheduler AutoSyncState
	Clock     func() time.Time
}

func (d Dependencies) today() string {
	now := time.Now
	if d.Clock != nil {
		now = d.Clock
	}
	return now().Format(domain.DateLayout)
}

// Argument structs. The json tag names the argument, desc documents it for
// tool listings.

type createNoteArgs struct {
	Title   string   `json:"title,omitempty" validate:"required_without=Content,max=500" desc:"Note title"`
	Content string   `json:"content,omitempty" validate:"required_without=Title" desc:"Markdown body"`
	Tags    []string `json:"tags,omitempty" desc:"Tags"`
	Pinned  bool     `json:"pinned,omitempty" desc:"Pin the note"`
}

type createTaskArgs struct {
	Title       string   `json:"title" validate:"required,notblank,max=500" desc:"Task title"`
	Description string   `json:"description,omitempty" desc:"Details"`
	Priority    string   `json:"priority,omitempty" validate:"omitempty,oneof=P1 P2 P3 P4" desc:"P1 to P4"`
	DueDate     string   `json:"dueDate,omitempty" validate:"isodate" desc:"Due date YYYY-MM-DD"`
	Tags        []string `json:"tags,omitempty" desc:"Tags"`
}

type createHabitArgs struct {
	Name      string `json:"name" validate:"required,notblank,max=200" desc:"Habit name"`
	Frequency string `json:"frequency,omitempty" validate:"omitempty,oneof=daily weekly" desc:"daily or weekly"`
	Category  string `json:"category,omitempty" desc:"Category"`
}

type createBookmarkArgs struct {
	URL         string   `json:"url" validate:"required,url" desc:"Link"`
	Title       string   `json:"title,omitempty" desc:"Title"`
	Description string   `json:"description,omitempty" desc:"Description"`
	Collection  string   `json:"collection,omitempty" desc:"Bookmark collection"`
	Tags        []string `json:"tags,omitempty" desc:"Tags"`
}

type createIdeaArgs struct {
	Title   string   `json:"title" validate:"required,notblank,max=500" desc:"Idea title"`
	Content string   `json:"content,omitempty" desc:"Details"`
	Color   string   `json:"color,omitempty" validate:"hexcolor" desc:"Card color #RRGGBB"`
	Tags    []string `json:"tags,omitempty" desc:"Tags"`
}

type createDailyNoteArgs struct {
	Date    string `json:"date" validate:"required,isodate" desc:"Day YYYY-MM-DD"`
	Title   string `json:"title,omitempty" desc:"Card title"`
	Content string `json:"content" validate:"required" desc:"Card text"`
	Pinned  bool   `json:"pinned,omitempty" desc:"Pin the card"`
}

type createFocusSessionArgs struct {
	DurationMinutes int    `json:"durationMinutes" validate:"required,gte=1,lte=1440" desc:"Length in minutes"`
	TaskID          string `json:"taskId,omitempty" desc:"Task worked on"`
	Label           string `json:"label,omitempty" desc:"Label"`
	StartedAt       string `json:"startedAt,omitempty" desc:"Start time RFC 3339"`
	Completed       bool   `json:"completed,omitempty" desc:"Whether the session ran to the end"`
}

type writeJournalArgs struct {
	Date    string   `json:"date,omitempty" validate:"isodate" desc:"Day YYYY-MM-DD, defaults to today"`
	Content string   `json:"content" validate:"required" desc:"Journal text"`
	Mood    int      `json:"mood,omitempty" validate:"gte=0,lte=5" desc:"Mood 1 to 5"`
	Energy  int      `json:"energy,omitempty" validate:"gte=0,lte=5" desc:"Energy 1 to 5"`
	Tags    []string `json:"tags,omitempty" desc:"Tags"`
}

type collectionArgs struct {
	Collection string `json:"collection" validate:"required" desc:"notes, tasks, habits, journal, bookmarks, ideas, dailyNotes or focusSessions"`
}

type itemArgs struct {
	Collection string `json:"collection" validate:"required" desc:"Collection name"`
	ID         string `json:"id" validate:"required" desc:"Item id"`
}

type updateItemArgs struct {
	Collection string         `json:"collection" validate:"required" desc:"Collection name"`
	ID         string         `json:"id" validate:"required" desc:"Item id"`
	Fields     map[string]any `json:"fields" validate:"required,min=1" desc:"Fields to change"`
}

type idArgs struct {
	ID string `json:"id" validate:"required" desc:"Item id"`
}

type checkHabitArgs struct {
	ID   string `json:"id" validate:"required" desc:"Habit id"`
	Date string `json:"date,omitempty" validate:"isodate" desc:"Day YYYY-MM-DD, defaults to today"`
}

type statsArgs struct {
	Stats map[string]any `json:"stats" validate:"required" desc:"Complete replacement value"`
}

type noArgs struct{}

type configureArgs struct {
	Token           *string `json:"token,omitempty" desc:"GitHub token with gist scope"`
	GistID          *string `json:"gistId,omitempty" desc:"Existing gist id"`
	AutoSync        *bool   `json:"autoSync,omitempty" desc:"Enable periodic smart sync"`
	IntervalMinutes *int    `json:"intervalMinutes,omitempty" validate:"omitempty,gte=1" desc:"Minutes between auto syncs"`
}

type forceArgs struct {
	Force bool `json:"force,omitempty" desc:"Apply even when the incoming dataset is much smaller"`
}

// NewCatalog registers every command.
func NewCatalog(deps Dependencies) *Registry {
	r := NewRegistry()

	r.MustRegister(creation[createNoteArgs]("create_note", "Create a note", "note", domain.CollectionNotes, deps))
	r.MustRegister(creation[createTaskArgs]("create_task", "Create a task", "task", domain.CollectionTasks, deps))
	r.MustRegister(creation[createHabitArgs]("create_habit", "Create a habit", "habit", domain.CollectionHabits, deps))
	r.MustRegister(creation[createBookmarkArgs]("create_bookmark", "Save a bookmark", "bookmark", domain.CollectionBookmarks, deps))
	r.MustRegister(creation[createIdeaArgs]("create_idea", "Capture an idea", "idea", domain.CollectionIdeas, deps))
	r.MustRegister(creation[createDailyNoteArgs]("create_daily_note", "Add a card to a day", "daily note", domain.CollectionDailyNotes, deps))
	r.MustRegister(creation[createFocusSessionArgs]("create_focus_session", "Record a focus session", "focus session", domain.CollectionFocusSessions, deps))

	r.MustRegister(Command{
		Name:        "write_journal",
		Description: "Write the journal entry for a day, replacing any existing entry",
		Params:      paramsOf(writeJournalArgs{}),
		Run: func(ctx context.Context, args map[string]any) (api.CommandResponse, error) {
			var in writeJournalArgs
			if err := bind("write_journal", args, &in); err != nil {
				return api.CommandResponse{}, err
			}
			if in.Date == "" {
				in.Date = deps.today()
			}
			fields, err := fieldsOf(in)
			if err != nil {
				return api.CommandResponse{}, err
			}
			res, err := deps.Backend.Apply(ctx, backend.Mutation{
				Op:         backend.OpUpsertJournal,
				Collection: domain.CollectionJournal,
				Date:       in.Date,
				Fields:     fields,
			})
			if err != nil {
				return api.CommandResponse{}, err
			}
			return api.CommandResponse{Message: "Journal entry saved for " + in.Date, Data: res.Data}, nil
		},
	})

	registerItemCommands(r, deps)
	registerStatsCommands(r, deps)
	registerSyncCommands(r, deps)
	return r
}

// creation builds a create_* command that decodes T and creates one item.
func creation[T any](name, description, singular string, collection domain.CollectionName, deps Dependencies) Command {
	var zero T
	return Command{
		Name:        name,
		Description: description,
		Params:      paramsOf(zero),
		Run: func(ctx context.Context, args map[string]any) (api.CommandResponse, error) {
			var in T
			if err := bind(name, args, &in); err != nil {
				return api.CommandResponse{}, err
			}
			fields, err := fieldsOf(in)
			if err != nil {
				return api.CommandResponse{}, err
			}
			res, err := deps.Backend.Apply(ctx, backend.Mutation{
				Op:         backend.OpCreate,
				Collection: collection,
				Fields:     fields,
			})
			if err != nil {
				return api.CommandResponse{}, err
			}
			return api.CommandResponse{Message: "Created " + singular, Data: res.Data}, nil
		},
	}
}

func registerItemCommands(r *Registry, deps Dependencies) {
	apply := func(ctx context.Context, m backend.Mutation, message string) (api.CommandResponse, error) {
		res, err := deps.Backend.Apply(ctx, m)
		if err != nil {
			return api.CommandResponse{}, err
		}
		return api.CommandResponse{Message: message, Data: res.Data}, nil
	}

	r.MustRegister(Command{
		Name:        "list_items",
		ReadOnly:    true,
		Description: "List the items of a collection",
		Params:      paramsOf(collectionArgs{}),
		Run: func(ctx context.Context, args map[string]any) (api.CommandResponse, error) {
			var in collectionArgs
			if err := bind("list_items", args, &in); err != nil {
				return api.CommandResponse{}, err
			}
			name, err := domain.ParseCollection(in.Collection)
			if err != nil {
				return api.CommandResponse{}, err
			}
			res, err := deps.Backend.Apply(ctx, backend.Mutation{Op: backend.OpList, Collection: name})
			if err != nil {
				return api.CommandResponse{}, err
			}
			var items []json.RawMessage
			if err := json.Unmarshal(res.Data, &items); err != nil {
				return api.CommandResponse{}, apperrors.Internal(apperrors.CodeInternal, "Backend returned a malformed item list").
					WithResource(string(name)).
					WithCause(err).
					Build()
			}
			return api.CommandResponse{
				Message: fmt.Sprintf("%d %s", len(items), name),
				Data:    res.Data,
			}, nil
		},
	})

	r.MustRegister(Command{
		Name:        "get_item",
		ReadOnly:    true,
		Description: "Get one item",
		Params:      paramsOf(itemArgs{}),
		Run: func(ctx context.Context, args map[string]any) (api.CommandResponse, error) {
			var in itemArgs
			if err := bind("get_item", args, &in); err != nil {
				return api.CommandResponse{}, err
			}
			name, err := domain.ParseCollection(in.Collection)
			if err != nil {
				return api.CommandResponse{}, err
			}
			return apply(ctx, backend.Mutation{Op: backend.OpGet, Collection: name, ID: in.ID}, "Found "+in.ID)
		},
	})

	r.MustRegister(Command{
		Name:        "update_item",
		Description: "Change fields of an item",
		Params:      paramsOf(updateItemArgs{}),
		Run: func(ctx context.Context, args map[string]any) (api.CommandResponse, error) {
			var in updateItemArgs
			if err := bind("update_item", args, &in); err != nil {
				return api.CommandResponse{}, err
			}
			name, err := domain.ParseCollection(in.Collection)
			if err != nil {
				return api.CommandResponse{}, err
			}
			return apply(ctx, backend.Mutation{
				Op:         backend.OpUpdate,
				Collection: name,
				ID:         in.ID,
				Fields:     in.Fields,
			}, "Updated "+in.ID)
		},
	})

	r.MustRegister(Command{
		Name:        "delete_item",
		Description: "Delete an item",
		Params:      paramsOf(itemArgs{}),
		Run: func(ctx context.Context, args map[string]any) (api.CommandResponse, error) {
			var in itemArgs
			if err := bind("delete_item", args, &in); err != nil {
				return api.CommandResponse{}, err
			}
			name, err := domain.ParseCollection(in.Collection)
			if err != nil {
				return api.CommandResponse{}, err
			}
			return apply(ctx, backend.Mutation{Op: backend.OpDelete, Collection: name, ID: in.ID}, "Deleted "+in.ID)
		},
	})

	r.MustRegister(Command{
		Name:        "complete_task",
		Description: "Mark a task completed",
		Params:      paramsOf(idArgs{}),
		Run: func(ctx context.Context, args map[string]any) (api.CommandResponse, error) {
			var in idArgs
			if err := bind("complete_task", args, &in); err != nil {
				return api.CommandResponse{}, err
			}
			return apply(ctx, backend.Mutation{
				Op:         backend.OpCompleteTask,
				Collection: domain.CollectionTasks,
				ID:         in.ID,
			}, "Task completed")
		},
	})

	r.MustRegister(Command{
		Name:        "check_habit",
		Description: "Record a habit completion for a day",
		Params:      paramsOf(checkHabitArgs{}),
		Run: func(ctx context.Context, args map[string]any) (api.CommandResponse, error) {
			var in checkHabitArgs
			if err := bind("check_habit", args, &in); err != nil {
				return api.CommandResponse{}, err
			}
			if in.Date == "" {
				in.Date = deps.today()
			}
			return apply(ctx, backend.Mutation{
				Op:         backend.OpCheckHabit,
				Collection: domain.CollectionHabits,
				ID:         in.ID,
				Date:       in.Date,
			}, "Habit checked for "+in.Date)
		},
	})
}

func registerStatsCommands(r *Registry, deps Dependencies) {
	r.MustRegister(Command{
		Name:        "get_stats",
		ReadOnly:    true,
		Description: "Get gamification and focus statistics",
		Params:      paramsOf(noArgs{}),
		Run: func(ctx context.Context, args map[string]any) (api.CommandResponse, error) {
			var in noArgs
			if err := bind("get_stats", args, &in); err != nil {
				return api.CommandResponse{}, err
			}
			out := make(map[string]json.RawMessage, 2)
			for _, name := range []domain.SingletonName{domain.SingletonGamification, domain.SingletonFocusStats} {
				res, err := deps.Backend.Apply(ctx, backend.Mutation{Op: backend.OpGetSingleton, Singleton: name})
				if err != nil {
					return api.CommandResponse{}, err
				}
				out[string(name)] = res.Data
			}
			data, err := json.Marshal(out)
			if err != nil {
				return api.CommandResponse{}, err
			}
			return api.CommandResponse{Message: "Statistics", Data: data}, nil
		},
	})

	replace := func(name string, singleton domain.SingletonName, description string) Command {
		return Command{
			Name:        name,
			Description: description,
			Params:      paramsOf(statsArgs{}),
			Run: func(ctx context.Context, args map[string]any) (api.CommandResponse, error) {
				var in statsArgs
				if err := bind(name, args, &in); err != nil {
					return api.CommandResponse{}, err
				}
				res, err := deps.Backend.Apply(ctx, backend.Mutation{
					Op:        backend.OpPutSingleton,
					Singleton: singleton,
					Fields:    in.Stats,
				})
				if err != nil {
					return api.CommandResponse{}, err
				}
				return api.CommandResponse{Message: "Updated " + string(singleton), Data: res.Data}, nil
			},
		}
	}
	r.MustRegister(replace("update_gamification", domain.SingletonGamification, "Replace the gamification statistics"))
	r.MustRegister(replace("update_focus_stats", domain.SingletonFocusStats, "Replace the focus statistics"))
}

type syncStatus struct {
	syncer.Status
	AutoSyncRunning bool `json:"autoSyncRunning"`
}

func registerSyncCommands(r *Registry, deps Dependencies) {
	result := func(res *syncer.Result, err error) (api.CommandResponse, error) {
		if err != nil {
			return api.CommandResponse{}, err
		}
		data, err := json.Marshal(res)
		if err != nil {
			return api.CommandResponse{}, err
		}
		return api.CommandResponse{Message: res.Message, Data: data}, nil
	}
	status := func(st syncer.Status, message string) (api.CommandResponse, error) {
		out := syncStatus{Status: st}
		if deps.Scheduler != nil {
			out.AutoSyncRunning = deps.Scheduler.Running()
		}
		data, err := json.Marshal(out)
		if err != nil {
			return api.CommandResponse{}, err
		}
		return api.CommandResponse{Message: message, Data: data}, nil
	}

	r.MustRegister(Command{
		Name:        "sync_status",
		ReadOnly:    true,
		Description: "Show the sync configuration and local dataset",
		Params:      paramsOf(noArgs{}),
		Run: func(ctx context.Context, args map[string]any) (api.CommandResponse, error) {
			var in noArgs
			if err := bind("sync_status", args, &in); err != nil {
				return api.CommandResponse{}, err
			}
			st, err := deps.Sync.Status()
			if err != nil {
				return api.CommandResponse{}, err
			}
			message := "Sync not configured"
			if st.Configured {
				message = "Sync configured"
			}
			return status(st, message)
		},
	})

	r.MustRegister(Command{
		Name:        "sync_configure",
		Description: "Set the sync token, gist and auto-sync schedule",
		Params:      paramsOf(configureArgs{}),
		Run: func(ctx context.Context, args map[string]any) (api.CommandResponse, error) {
			var in configureArgs
			if err := bind("sync_configure", args, &in); err != nil {
				return api.CommandResponse{}, err
			}
			st, err := deps.Sync.Configure(ctx, syncer.ConfigureRequest{
				Token:           in.Token,
				GistID:          in.GistID,
				AutoSync:        in.AutoSync,
				IntervalMinutes: in.IntervalMinutes,
			})
			if err != nil {
				return api.CommandResponse{}, err
			}
			return status(st, "Sync configuration saved")
		},
	})

	r.MustRegister(Command{
		Name:        "sync_create_remote",
		Description: "Create the remote gist from the local dataset",
		Params:      paramsOf(noArgs{}),
		Run: func(ctx context.Context, args map[string]any) (api.CommandResponse, error) {
			var in noArgs
			if err := bind("sync_create_remote", args, &in); err != nil {
				return api.CommandResponse{}, err
			}
			return result(deps.Sync.CreateRemote(ctx))
		},
	})

	r.MustRegister(Command{
		Name:        "sync_pull",
		Description: "Replace the local dataset with the remote one",
		Params:      paramsOf(forceArgs{}),
		Run: func(ctx context.Context, args map[string]any) (api.CommandResponse, error) {
			var in forceArgs
			if err := bind("sync_pull", args, &in); err != nil {
				return api.CommandResponse{}, err
			}
			return result(deps.Sync.Pull(ctx, in.Force))
		},
	})

	r.MustRegister(Command{
		Name:        "sync_push",
		Description: "Replace the remote dataset with the local one",
		Params:      paramsOf(forceArgs{}),
		Run: func(ctx context.Context, args map[string]any) (api.CommandResponse, error) {
			var in forceArgs
			if err := bind("sync_push", args, &in); err != nil {
				return api.CommandResponse{}, err
			}
			return result(deps.Sync.Push(ctx, in.Force))
		},
	})

	r.MustRegister(Command{
		Name:        "sync_smart",
		Description: "Pull or push whichever side is newer",
		Params:      paramsOf(noArgs{}),
		Run: func(ctx context.Context, args map[string]any) (api.CommandResponse, error) {
			var in noArgs
			if err := bind("sync_smart", args, &in); err != nil {
				return api.CommandResponse{}, err
			}
			return result(deps.Sync.SmartSync(ctx))
		},
	})
}
