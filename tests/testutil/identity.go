package testutil

import "github.com/nhle/teamtasks/internal/model"

// Fixed identities used across workflow tests.
var (
	Alice = model.Identity{ID: "user-alice", Email: "alice@x.com"}
	Bob   = model.Identity{ID: "user-bob", Email: "bob@x.com"}
	Carol = model.Identity{ID: "user-carol", Email: "carol@x.com"}
)
