package auth

import (
	"bufio"
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Level is a user's authorization level
type Level int

const (
	LevelUser  Level = 0
	LevelAdmin Level = 1000
)

var levelNames = map[string]Level{
	"USER":  LevelUser,
	"ADMIN": LevelAdmin,
}

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnknownUser        = errors.New("unknown user")
)

// User is an entry of the users file
type User struct {
	Username  string `json:"username"`
	AuthLevel Level  `json:"authLevel"`

	password string
}

// IsAdmin reports whether the user may manage elections
func (u *User) IsAdmin() bool {
	return u.AuthLevel >= LevelAdmin
}

// UserStore authenticates against a username,password[,LEVEL] file
type UserStore struct {
	path  string
	mu    sync.RWMutex
	users map[string]*User
}

// LoadUsers reads the users file at path
func LoadUsers(path string) (*UserStore, error) {
	s := &UserStore{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the users file. On error the previous users are kept.
func (s *UserStore) Reload() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("opening users file: %w", err)
	}
	defer f.Close()

	users := make(map[string]*User)
	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		user, err := parseUserLine(line)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", s.path, lineno, err)
		}
		users[user.Username] = user
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading users file: %w", err)
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	return nil
}

// Authenticate returns the user when the password matches
func (s *UserStore) Authenticate(username, password string) (*User, error) {
	s.mu.RLock()
	user, ok := s.users[username]
	s.mu.RUnlock()
	if !ok || !checkPassword(user.password, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Lookup returns the user with the given name
func (s *UserStore) Lookup(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	return user, nil
}

// Len returns the number of known users
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func parseUserLine(line string) (*User, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 2 || len(fields) > 3 {
		return nil, fmt.Errorf("invalid line %q", line)
	}

	username := strings.TrimSpace(fields[0])
	if username == "" {
		return nil, errors.New("empty username")
	}

	level := LevelUser
	if len(fields) > 2 {
		name := strings.TrimSpace(fields[2])
		l, ok := levelNames[name]
		if !ok {
			return nil, fmt.Errorf("invalid level %q", name)
		}
		level = l
	}

	return &User{Username: username, AuthLevel: level, password: fields[1]}, nil
}

func isBcryptHash(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") ||
		strings.HasPrefix(stored, "$2y$")
}

func checkPassword(stored, given string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
