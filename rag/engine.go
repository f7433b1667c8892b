package rag

import (
	"github.com/charon107/hybridrecall/rag/interfaces"
	"github.com/charon107/hybridrecall/rag/types"
)

// Engine is an alias for interfaces.Engine
type Engine = interfaces.Engine

// Result is an alias for types.Result
type Result = types.Result

// Document is an alias for types.Document
type Document = types.Document
