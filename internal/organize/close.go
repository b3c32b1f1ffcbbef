package organize

import (
	"context"
	"fmt"
	"time"

	"github.com/lotas/tabheinzel/internal/applog"
	"github.com/lotas/tabheinzel/internal/domain"
	"github.com/lotas/tabheinzel/internal/important"
)

// Batching for CloseUnimportant keeps the browser responsive on windows
// with hundreds of tabs.
const (
	CloseBatchSize  = 20
	CloseBatchPause = 50 * time.Millisecond
)

// CloseUnimportant closes every tab in windowID whose hostname is not in
// set, CloseBatchSize tabs at a time. Tabs without a parseable host are
// closed too. It returns how many tabs were closed before the first
// failing batch.
func CloseUnimportant(ctx context.Context, host Host, windowID int, set important.Set) (int, error) {
	tabs, err := host.QueryTabs(ctx, TabQuery{WindowID: windowID})
	if err != nil {
		return 0, fmt.Errorf("query tabs: %w", err)
	}
	var doomed []int
	for _, t := range tabs {
		if h, ok := domain.Hostname(t.URL); ok && set.Has(h) {
			continue
		}
		doomed = append(doomed, t.ID)
	}

	closed := 0
	for start := 0; start < len(doomed); start += CloseBatchSize {
		end := min(start+CloseBatchSize, len(doomed))
		if err := host.CloseTabs(ctx, doomed[start:end]); err != nil {
			return closed, fmt.Errorf("close tabs: %w", err)
		}
		closed += end - start
		if end < len(doomed) && !sleep(ctx, CloseBatchPause) {
			return closed, ctx.Err()
		}
	}
	applog.Info("close.unimportant", "window", windowID, "closed", closed, "kept", len(tabs)-closed)
	return closed, nil
}
