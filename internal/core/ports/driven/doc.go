// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - EmbeddingProvider: Turns text into vectors (OpenAI, Ollama)
//   - KnowledgeStore: Document, fragment and vector persistence (SQLite, Postgres/pgvector, memory)
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingCache: Caches query vectors (Redis). Without it every query hits the provider.
//   - EventPublisher: Publishes ingestion events (Kafka).
//   - MetricsRecorder: Records pipeline metrics (Prometheus).
//   - TextExtractor: Decodes uploaded files into text. Only the CLI needs it.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
