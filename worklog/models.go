package worklog

import (
	"context"
	"fmt"
	"net/http"
)

// sessionDefaultWorkspace is the computed default every workspaced entity
// shares: when nothing names a workspace, the session's default one is
// used.
func sessionDefaultWorkspace(ctx context.Context, s *Session) (any, error) {
	if s == nil {
		return nil, nil
	}
	return s.DefaultWorkspace(ctx)
}

// Workspace is the account container everything else lives in. Workspaces
// are created through the vendor's web UI, never through this client.
var Workspace = MustRegister(SchemaSpec{
	Name: "workspace",
	Fields: []Field{
		String("name", WithRequired()),
		Boolean("premium"),
		Boolean("admin"),
		Boolean("only_admins_may_create_projects"),
		Integer("rounding"),
		Integer("rounding_minutes"),
		Float("default_hourly_rate"),
		String("default_currency"),
		String("logo_url"),
	},
	DisableCreate: true,
	DisableDelete: true,
})

// workspacedEntity is the abstract base of every entity that belongs to a
// workspace. The relation's id travels as "wid" and defaults to the
// session's default workspace.
var workspacedEntity = MustRegister(SchemaSpec{
	Name:     "workspaced_entity",
	Abstract: true,
	Fields: []Field{
		Relation("workspace", Workspace, "wid",
			WithComputedDefault(sessionDefaultWorkspace)),
	},
})

// premiumEntity marks whole entity types that exist only on premium plans.
var premiumEntity = MustRegister(SchemaSpec{
	Name:        "premium_entity",
	Abstract:    true,
	Extends:     workspacedEntity,
	PremiumOnly: true,
})

var beginningOfWeekDays = map[string]string{
	"0": "Sunday",
	"1": "Monday",
	"2": "Tuesday",
	"3": "Wednesday",
	"4": "Thursday",
	"5": "Friday",
	"6": "Saturday",
}

// User is the authenticated account. It is managed through the vendor, so
// the client can only read it; the current user comes from Users.Me.
var User = MustRegister(SchemaSpec{
	Name:    "user",
	Extends: workspacedEntity,
	Fields: []Field{
		Email("email"),
		String("fullname"),
		String("api_token"),
		String("timezone"),
		String("image_url"),
		String("language"),
		Choice("beginning_of_week", beginningOfWeekDays),
		Relation("default_workspace", Workspace, "default_workspace_id"),
	},
	DisableCreate: true,
	DisableUpdate: true,
	DisableDelete: true,
	DisableDetail: true,
})

// Client is a customer projects are billed to.
var Client = MustRegister(SchemaSpec{
	Name:    "client",
	Extends: workspacedEntity,
	Fields: []Field{
		String("name", WithRequired()),
		String("notes"),
	},
})

// Project groups time entries and tasks under a client.
var Project = MustRegister(SchemaSpec{
	Name:    "project",
	Extends: workspacedEntity,
	Fields: []Field{
		String("name", WithRequired()),
		Relation("client", Client, "client_id"),
		Boolean("active", WithDefault(true)),
		Boolean("is_private", WithDefault(true)),
		Boolean("billable", WithPremium()),
		Boolean("auto_estimates", WithPremium(), WithDefault(false)),
		Integer("estimated_hours", WithPremium(), WithDefault(0)),
		String("color"),
		Float("rate", WithPremium()),
	},
})

// Task is a unit of work inside a project. The whole entity type is gated
// behind premium plans.
var Task = MustRegister(SchemaSpec{
	Name:    "task",
	Extends: premiumEntity,
	Fields: []Field{
		String("name", WithRequired()),
		Relation("project", Project, "pid", WithRequired()),
		Relation("user", User, "uid"),
		Integer("estimated_seconds"),
		Boolean("active", WithDefault(true)),
		Integer("tracked_seconds", WithReadOnly()),
	},
})

// Tag labels time entries. Tags have no detail endpoint; lookups filter the
// collection.
var Tag = MustRegister(SchemaSpec{
	Name:    "tag",
	Extends: workspacedEntity,
	Fields: []Field{
		String("name", WithRequired()),
	},
	DisableDetail: true,
})

// WorkspaceUser is a membership record. Only the admin flag is writable,
// and only by admins.
var WorkspaceUser = MustRegister(SchemaSpec{
	Name:    "workspace_user",
	Extends: workspacedEntity,
	Fields: []Field{
		Email("email", WithReadOnly()),
		Boolean("active"),
		Boolean("admin", WithAdminOnly()),
		Relation("user", User, "uid", WithReadOnly()),
	},
	DisableCreate: true,
	DisableDetail: true,
})

// ProjectUser assigns a user to a project, optionally as manager and with
// an admin-set rate.
var ProjectUser = MustRegister(SchemaSpec{
	Name:    "project_user",
	Extends: workspacedEntity,
	Fields: []Field{
		Float("rate", WithAdminOnly()),
		Boolean("manager", WithDefault(false)),
		Relation("project", Project, "project_id", WithReadOnly()),
		Relation("user", User, "user_id", WithReadOnly()),
	},
	DisableDetail: true,
})

// UserSet adds the current-user lookup on top of the plain query set.
type UserSet struct {
	*Set
}

// Users is the query manager for User.
var Users = &UserSet{Set: User.Objects()}

// Me fetches the authenticated user.
func (u *UserSet) Me(ctx context.Context, sess *Session) (*Entity, error) {
	return fetchMe(ctx, sess)
}

// fetchMe retrieves the authenticated user. The schema comes from the
// registry so that session code can call this without referencing the
// package-level schema variables, which would cycle initialization.
func fetchMe(ctx context.Context, sess *Session) (*Entity, error) {
	schema, ok := Lookup("user")
	if !ok {
		return nil, fmt.Errorf("user schema is not registered")
	}
	raw, err := sess.Transport().Request(ctx, http.MethodGet, "/me", nil)
	if err != nil {
		return nil, err
	}
	record, err := unwrapData(raw)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return schema.Objects().deserialize(ctx, sess, record)
}
