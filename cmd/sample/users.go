package main

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/bjaus/apischema"
	"github.com/bjaus/apischema/pgxdb"
)

// User is the stored user record.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UserIn is the body of a create call.
type UserIn struct {
	Name  string `json:"name" required:"true" minLength:"1" maxLength:"100" doc:"Display name"`
	Email string `json:"email" required:"true" pattern:"^[^@]+@[^@]+$" doc:"Email address"`
	Role  string `json:"role" enum:"admin,member" doc:"User role"`
}

// UserOut is the public representation of a user.
type UserOut struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// SquareQuery is the query of the square action.
type SquareQuery struct {
	N int `query:"n" default:"2" doc:"Number to square"`
}

func toOut(u User) UserOut {
	return UserOut{ID: u.ID, Name: u.Name, Role: u.Role}
}

type userStore interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, in UserIn) (User, error)
}

// userViews is the users view set.
type userViews struct {
	store userStore
}

func newUserViews(store userStore) *apischema.DecoratedView {
	return apischema.DecorateView(&userViews{store: store}, apischema.ViewDecorators{
		apischema.ActionList: apischema.New(
			apischema.WithPermissions(apischema.IsAdminUser{}),
			apischema.WithResponse(apischema.Of[[]User]()),
		),
		apischema.ActionCreate: apischema.New(
			apischema.WithBody(apischema.Of[UserIn]()),
			apischema.WithStatusResponse(http.StatusCreated, apischema.Of[UserOut]()),
		),
		apischema.ActionRetrieve: apischema.New(
			apischema.WithResponse(apischema.Of[UserOut]()),
		),
		"echo": apischema.New(
			apischema.WithResponse(apischema.Of[UserOut]()),
			apischema.WithTransaction(false),
		),
		"square": apischema.New(
			apischema.WithQuery(apischema.Of[SquareQuery]()),
			apischema.WithResponse(apischema.Of[int]()),
			apischema.WithTransaction(false),
		),
	})
}

func (v *userViews) Actions() []apischema.Action {
	return []apischema.Action{
		apischema.ListAction(v.list).WithDoc("List users\n\nReturns every user."),
		apischema.CreateAction(v.create).WithDoc("Create user"),
		apischema.RetrieveAction(v.retrieve).WithDoc("Get user"),
		apischema.ExtraAction("echo", http.MethodGet, true, v.echo).WithDoc("Echo user\n\nReturns the public view of the user."),
		apischema.ExtraAction("square", http.MethodGet, false, v.square).WithDoc("Square a number"),
	}
}

// GetObject implements apischema.ObjectGetter.
func (v *userViews) GetObject(ctx context.Context, pk string) (any, error) {
	id, err := strconv.ParseInt(pk, 10, 64)
	if err != nil {
		return nil, apischema.ErrNotFound
	}
	return v.store.Get(ctx, id)
}

func (v *userViews) DefaultSchema() apischema.Schema { return apischema.Of[UserIn]() }

func (v *userViews) list(ctx context.Context, _ *apischema.Event) (any, error) {
	return v.store.List(ctx)
}

func (v *userViews) create(ctx context.Context, ev *apischema.Event) (any, error) {
	in, ok := apischema.Validated[UserIn](ev)
	if !ok {
		return nil, apischema.Error(http.StatusBadRequest, "missing user")
	}
	if in.Role == "" {
		in.Role = "member"
	}
	u, err := v.store.Create(ctx, *in)
	if err != nil {
		return nil, err
	}
	return apischema.NewResponse(http.StatusCreated, toOut(u)), nil
}

func (v *userViews) retrieve(ctx context.Context, ev *apischema.Event) (any, error) {
	obj, err := ev.Object(ctx)
	if err != nil {
		return nil, err
	}
	return toOut(obj.(User)), nil
}

func (v *userViews) echo(ctx context.Context, ev *apischema.Event) (any, error) {
	obj, err := ev.Object(ctx)
	if err != nil {
		return nil, err
	}
	return toOut(obj.(User)), nil
}

func (v *userViews) square(_ context.Context, ev *apischema.Event) (any, error) {
	q, _ := apischema.Validated[SquareQuery](ev)
	return q.N * q.N, nil
}

type memoryStore struct {
	mu     sync.RWMutex
	users  map[int64]User
	nextID int64
}

func newMemoryStore() *memoryStore {
	now := time.Now().UTC()
	return &memoryStore{
		users: map[int64]User{
			1: {ID: 1, Name: "Alice", Email: "alice@example.com", Role: "admin", CreatedAt: now},
			2: {ID: 2, Name: "Bob", Email: "bob@example.com", Role: "member", CreatedAt: now},
		},
		nextID: 3,
	}
}

func (s *memoryStore) List(context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b User) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *memoryStore) Get(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, apischema.ErrNotFound
	}
	return u, nil
}

func (s *memoryStore) Create(_ context.Context, in UserIn) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := User{ID: s.nextID, Name: in.Name, Email: in.Email, Role: in.Role, CreatedAt: time.Now().UTC()}
	s.nextID++
	s.users[u.ID] = u
	return u, nil
}

// pgStore keeps users in a PostgreSQL "users" table.
type pgStore struct {
	db pgxdb.Querier
}

const userColumns = "id, name, email, role, created_at"

func (s *pgStore) List(ctx context.Context) ([]User, error) {
	return pgxdb.List[User](ctx, s.db, "SELECT "+userColumns+" FROM users ORDER BY id")
}

func (s *pgStore) Get(ctx context.Context, id int64) (User, error) {
	return pgxdb.Get[User](ctx, s.db, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
}

func (s *pgStore) Create(ctx context.Context, in UserIn) (User, error) {
	return pgxdb.Get[User](ctx, s.db,
		"INSERT INTO users (name, email, role) VALUES ($1, $2, $3) RETURNING "+userColumns,
		in.Name, in.Email, in.Role)
}
