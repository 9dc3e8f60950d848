package devbackend

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"consola.app/internal/auth"
)

var (
	ErrUnknownUser   = errors.New("unknown user")
	ErrWrongPassword = errors.New("wrong password")
	ErrInactiveUser  = errors.New("inactive user")
)

// User is a backend account.
type User struct {
	ID           int64    `yaml:"id"`
	Name         string   `yaml:"name"`
	Email        string   `yaml:"email"`
	Password     string   `yaml:"password,omitempty"`
	PasswordHash string   `yaml:"password_hash,omitempty"`
	Role         string   `yaml:"role"`
	Branch       string   `yaml:"branch"`
	Inactive     bool     `yaml:"inactive"`
	Permissions  []string `yaml:"permissions"`
}

// Identity renders the account as returned by /auth/me.
func (u User) Identity(created time.Time) auth.Identity {
	roleID := u.ID
	branchID := int64(1)
	return auth.Identity{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		BranchID:  &branchID,
		RoleID:    &roleID,
		Active:    !u.Inactive,
		CreatedAt: &created,
		UpdatedAt: &created,
		Branch:    &auth.Branch{ID: branchID, Name: u.Branch, Active: true},
		Role:      &auth.Role{ID: roleID, Name: u.Role},
	}
}

// Grants returns the permission objects held by the account.
func (u User) Grants() []auth.Permission {
	out := make([]auth.Permission, 0, len(u.Permissions))
	for i, name := range u.Permissions {
		out = append(out, auth.Permission{ID: int64(i + 1), Name: name})
	}
	return out
}

// Directory is the in-memory user table.
type Directory struct {
	mu      sync.RWMutex
	byEmail map[string]User
	byID    map[int64]User
	created time.Time
}

func NewDirectory(users []User) (*Directory, error) {
	d := &Directory{
		byEmail: make(map[string]User, len(users)),
		byID:    make(map[int64]User, len(users)),
		created: time.Now().UTC().Truncate(time.Second),
	}
	for _, u := range users {
		if err := d.add(u); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Directory) add(u User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Email == "" || u.ID <= 0 {
		return fmt.Errorf("user %q: id and email are required", u.Name)
	}
	if u.PasswordHash == "" {
		hash, err := HashPassword(u.Password)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.Email, err)
		}
		u.PasswordHash = hash
	}
	u.Password = ""
	if _, dup := d.byID[u.ID]; dup {
		return fmt.Errorf("user %s: duplicate id %d", u.Email, u.ID)
	}
	d.byEmail[u.Email] = u
	d.byID[u.ID] = u
	return nil
}

// Authenticate checks credentials and returns the account.
func (d *Directory) Authenticate(email, password string) (User, error) {
	d.mu.RLock()
	u, ok := d.byEmail[strings.ToLower(strings.TrimSpace(email))]
	d.mu.RUnlock()
	if !ok {
		return User{}, ErrUnknownUser
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return User{}, ErrWrongPassword
	}
	if u.Inactive {
		return User{}, ErrInactiveUser
	}
	return u, nil
}

// Get returns the account with id.
func (d *Directory) Get(id int64) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	return u, ok
}

// SetPermissions replaces a user's grants. Used to simulate role edits.
func (d *Directory) SetPermissions(id int64, perms ...string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byID[id]
	if !ok {
		return false
	}
	u.Permissions = append([]string(nil), perms...)
	d.byID[id] = u
	d.byEmail[u.Email] = u
	return true
}

// SetActive enables or disables an account. Used to simulate deactivation.
func (d *Directory) SetActive(id int64, active bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byID[id]
	if !ok {
		return false
	}
	u.Inactive = !active
	d.byID[id] = u
	d.byEmail[u.Email] = u
	return true
}

// Created is the timestamp reported for every account.
func (d *Directory) Created() time.Time { return d.created }

// DefaultUsers seeds an administrator holding every builtin permission and a
// plain operator without any.
func DefaultUsers() []User {
	perms := make([]string, 0, len(auth.BuiltinPermissions))
	for _, p := range auth.BuiltinPermissions {
		perms = append(perms, p.Name)
	}
	return []User{
		{ID: 1, Name: "Administrador", Email: "admin@consola.local", Password: "admin123", Role: "Administrador", Branch: "Central", Permissions: perms},
		{ID: 2, Name: "Operador", Email: "operador@consola.local", Password: "operador123", Role: "Operador", Branch: "Central"},
	}
}

type usersFile struct {
	Users []User `yaml:"users"`
}

// LoadUsers reads a YAML user seed file.
func LoadUsers(path string) ([]User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users %s: %w", path, err)
	}
	var f usersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse users %s: %w", path, err)
	}
	if len(f.Users) == 0 {
		return nil, fmt.Errorf("users %s: no users defined", path)
	}
	return f.Users, nil
}

// HashPassword hashes plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares plaintext password with stored hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
