// Package app composes the person service.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── domain/person/      # Person entity and its subtype variants
//	├── dto/                # JSON wire representation
//	├── services/persons/   # Person operations and entity/wire mapping
//	├── storage/            # Store interfaces and implementations
//	│   ├── interfaces.go   # PersonStore, PersonTx
//	│   ├── memory/         # In-memory implementation for tests and local runs
//	│   └── postgres/       # PostgreSQL implementation
//	├── httpapi/            # HTTP routes and handlers
//	├── system/             # Lifecycle manager
//	└── metrics/            # Prometheus collectors
//
// # Dependency Direction
//
//	cmd/personsvc/
//	      │
//	      ▼
//	internal/app/ (composition)
//	      │
//	      ├──► services/persons ──► storage ──► domain/person
//	      │           │
//	      │           └──► dto
//	      │
//	      └──► httpapi ──► services/persons
package app
