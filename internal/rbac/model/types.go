package model

import (
	"strconv"
	"time"
)

// Entity is the uniform view the authorization engine has of a persisted row.
// Field resolves an attribute by either its snake_case or camelCase name and
// renders it as a string, which is how cross-id association checks and
// branching-type reads are performed.
type Entity interface {
	Class() string
	PrimaryKey() string
	Field(name string) (string, bool)
}

type Organization struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type Account struct {
	ID             string    `json:"id" bson:"_id"`
	OrganizationID string    `json:"organization_id" bson:"organization_id"`
	Name           string    `json:"name" bson:"name"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

func (a *Account) Class() string      { return ClassAccount }
func (a *Account) PrimaryKey() string { return a.ID }

func (a *Account) Field(name string) (string, bool) {
	switch name {
	case "organization_id", "organizationId":
		return a.OrganizationID, true
	case "name":
		return a.Name, true
	}
	return "", false
}

type Project struct {
	ID               string    `json:"id" bson:"_id"`
	AccountID        string    `json:"account_id" bson:"account_id"`
	ParentProjectID  *string   `json:"parent_project_id,omitempty" bson:"parent_project_id,omitempty"`
	Name             string    `json:"name" bson:"name"`
	CreatorUserEmail string    `json:"creator_user_email" bson:"creator_user_email"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
}

func (p *Project) Class() string      { return ClassProject }
func (p *Project) PrimaryKey() string { return p.ID }

func (p *Project) Field(name string) (string, bool) {
	switch name {
	case "account_id", "accountId":
		return p.AccountID, true
	case "parent_project_id", "parentProjectId":
		if p.ParentProjectID == nil {
			return "", false
		}
		return *p.ParentProjectID, true
	case "name":
		return p.Name, true
	}
	return "", false
}

type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	IsSuperadmin bool      `json:"is_superadmin" bson:"is_superadmin"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

func (u *User) Class() string      { return ClassUser }
func (u *User) PrimaryKey() string { return u.ID }

func (u *User) Field(name string) (string, bool) {
	if name == "email" {
		return u.Email, true
	}
	return "", false
}

// UserAccount is the user/account membership junction. IsAdmin marks an
// account admin, who bypasses role-based evaluation inside that account.
type UserAccount struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	AccountID string    `json:"account_id" bson:"account_id"`
	IsAdmin   bool      `json:"is_admin" bson:"is_admin"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// UserProject is the user/project association junction. PermissionOverrides
// is structurally isomorphic to the project-scoped permission schema with
// Allow/Deny leaves.
type UserProject struct {
	ID                  string         `json:"id" bson:"_id"`
	UserID              string         `json:"user_id" bson:"user_id"`
	ProjectID           string         `json:"project_id" bson:"project_id"`
	IsAdmin             bool           `json:"is_admin" bson:"is_admin"`
	PermissionOverrides map[string]any `json:"permission_overrides" bson:"permission_overrides"`
	CreatedAt           time.Time      `json:"created_at" bson:"created_at"`
}

// Role is a named bundle of account-scoped permissions. Permissions validates
// against the account-scoped permission schema.
type Role struct {
	ID          string         `json:"id" bson:"_id"`
	Name        string         `json:"name" bson:"name"`
	Permissions map[string]any `json:"permissions" bson:"permissions"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
}

// RoleUserAccount assigns a Role to a user/account membership. A membership
// may hold any number of roles.
type RoleUserAccount struct {
	ID            string    `json:"id" bson:"_id"`
	RoleID        string    `json:"role_id" bson:"role_id"`
	UserAccountID string    `json:"user_account_id" bson:"user_account_id"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// Apikey is scoped to exactly one project. Permissions validates against the
// api-key-scoped permission schema and is deny-by-default outside it.
type Apikey struct {
	ID          string         `json:"id" bson:"_id"`
	ProjectID   string         `json:"project_id" bson:"project_id"`
	Name        string         `json:"name" bson:"name"`
	Permissions map[string]any `json:"permissions" bson:"permissions"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
}

func (k *Apikey) Class() string      { return ClassApikey }
func (k *Apikey) PrimaryKey() string { return k.ID }

func (k *Apikey) Field(name string) (string, bool) {
	switch name {
	case "project_id", "projectId":
		return k.ProjectID, true
	case "name":
		return k.Name, true
	}
	return "", false
}

// Application is the one shipped entity with a branching-type column; its
// applicationType value selects the TYPEVALUES_ subtree that applies.
type Application struct {
	ID              int       `json:"id" bson:"_id"`
	AccountID       string    `json:"account_id" bson:"account_id"`
	Name            string    `json:"name" bson:"name"`
	ApplicationType string    `json:"applicationType" bson:"applicationType"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}

func (a *Application) Class() string      { return ClassApplication }
func (a *Application) PrimaryKey() string { return strconv.Itoa(a.ID) }

func (a *Application) Field(name string) (string, bool) {
	switch name {
	case "account_id", "accountId":
		return a.AccountID, true
	case "application_type", "applicationType":
		return a.ApplicationType, true
	case "name":
		return a.Name, true
	}
	return "", false
}

type Configuration struct {
	ID            string    `json:"id" bson:"_id"`
	ApplicationID int       `json:"application_id" bson:"application_id"`
	Name          string    `json:"name" bson:"name"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

func (c *Configuration) Class() string      { return ClassConfiguration }
func (c *Configuration) PrimaryKey() string { return c.ID }

func (c *Configuration) Field(name string) (string, bool) {
	switch name {
	case "application_id", "applicationId":
		return strconv.Itoa(c.ApplicationID), true
	case "name":
		return c.Name, true
	}
	return "", false
}

type Instance struct {
	ID              string    `json:"id" bson:"_id"`
	ApplicationID   int       `json:"application_id" bson:"application_id"`
	ConfigurationID string    `json:"configuration_id" bson:"configuration_id"`
	Name            string    `json:"name" bson:"name"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}

func (i *Instance) Class() string      { return ClassInstance }
func (i *Instance) PrimaryKey() string { return i.ID }

func (i *Instance) Field(name string) (string, bool) {
	switch name {
	case "application_id", "applicationId":
		return strconv.Itoa(i.ApplicationID), true
	case "configuration_id", "configurationId":
		return i.ConfigurationID, true
	case "name":
		return i.Name, true
	}
	return "", false
}

type Dataset struct {
	ID        string    `json:"id" bson:"_id"`
	ProjectID string    `json:"project_id" bson:"project_id"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func (d *Dataset) Class() string      { return ClassDataset }
func (d *Dataset) PrimaryKey() string { return d.ID }

func (d *Dataset) Field(name string) (string, bool) {
	switch name {
	case "project_id", "projectId":
		return d.ProjectID, true
	case "name":
		return d.Name, true
	}
	return "", false
}

type Collection struct {
	ID        string    `json:"id" bson:"_id"`
	ProjectID string    `json:"project_id" bson:"project_id"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func (c *Collection) Class() string      { return ClassCollection }
func (c *Collection) PrimaryKey() string { return c.ID }

func (c *Collection) Field(name string) (string, bool) {
	switch name {
	case "project_id", "projectId":
		return c.ProjectID, true
	case "name":
		return c.Name, true
	}
	return "", false
}
