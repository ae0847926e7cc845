package evaluation

import "perfeval/internal/platform/querier"

// Store is the Postgres StoreAPI.
type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}
