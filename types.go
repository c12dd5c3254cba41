package pascope

import (
	"github.com/jward/pascope/internal/project"
	"github.com/jward/pascope/internal/store"
	"github.com/jward/pascope/internal/stub"
	"github.com/jward/pascope/internal/uses"
)

// Public type aliases for internal types used in the Engine and QueryBuilder
// API. These are Go type aliases (=), so no conversion is needed.

type Store = store.Store
type File = store.File
type Unit = store.Unit
type TypeStub = stub.TypeStub
type Kind = stub.Kind
type Scope = uses.Scope
type Source = uses.Source
type Augmentation = project.Augmentation

const (
	KindClass      = stub.KindClass
	KindRecord     = stub.KindRecord
	KindInterface  = stub.KindInterface
	KindProcedural = stub.KindProcedural
	KindUnknown    = stub.KindUnknown
)
