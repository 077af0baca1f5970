package export

import (
	"context"

	v1 "github.com/aevon-lab/project-tpms/internal/api/v1"
	"github.com/aevon-lab/project-tpms/internal/core/storage"
)

// Persister writes one export batch to the named target carried by the
// batch.
//
// Contract: the batch holds exactly the frames computed by SaveTo. Only a
// nil error together with Result.Status == "ok" counts as success; every
// other outcome leaves the target's cursor where it was, so a retry replays
// the same region.
type Persister interface {
	Persist(ctx context.Context, batch storage.Batch) (v1.Result, error)
}
