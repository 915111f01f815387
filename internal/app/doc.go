// Package app composes the microblog services into a running application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── user/           # Users, follows and profiles
//	│   └── tweet/          # Tweets, media, likes and feed entries
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces (UserStore, TweetStore, etc.)
//	│   ├── memory/         # In-memory implementation for tests and demos
//	│   ├── postgres/       # PostgreSQL implementation for production
//	│   └── cache/          # Redis api-key cache
//	├── services/           # Business rules (users, tweets, media)
//	├── httpapi/            # HTTP routing and handlers
//	├── runtime/            # Process wiring: config, database, HTTP server
//	├── seed/               # Demo data
//	├── system/             # Lifecycle manager
//	└── metrics/            # Prometheus collectors
//
// # Dependency Direction
//
//	cmd/microblog -> internal/cli -> internal/app/runtime
//	      runtime -> internal/app (composition) -> services -> storage
//	      runtime -> internal/app/httpapi -> internal/app
//
// Services never import the HTTP layer; handlers translate service errors
// from internal/errors into the JSON error envelope.
package app
