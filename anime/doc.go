// Package anime holds the domain types shared by the catalog and the per-user
// stores, plus the transformers that turn Jikan payloads into them.
package anime
