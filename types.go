package cfind

import "github.com/jward/cfind/internal/store"

// Public type aliases for internal store types appearing in the Indexer API.
// These are Go type aliases (=) — identical to the internal types at compile
// time, so external consumers never import the internal package.

type DB = store.DB
type FileRef = store.FileRef
type TypeRef = store.TypeRef
type Loc = store.Loc
type TypeEntry = store.TypeEntry
type Typename = store.Typename
type Member = store.Member
type TypeUse = store.TypeUse
type TypenameIter = store.TypenameIter
