package analytics

import "tradesim/internal/domain"

// LatestRunID returns the run that wrote the last snapshot, or the last trade when no
// snapshot exists. ok is false for an empty history.
func LatestRunID(snapshots []domain.EquitySnapshot, trades []domain.Trade) (runID string, ok bool) {
	if len(snapshots) > 0 {
		return snapshots[len(snapshots)-1].RunID, true
	}
	if len(trades) > 0 {
		return trades[len(trades)-1].RunID, true
	}
	return "", false
}

// FilterRun keeps the snapshots and trades written by runID, preserving order.
func FilterRun(snapshots []domain.EquitySnapshot, trades []domain.Trade, runID string) ([]domain.EquitySnapshot, []domain.Trade) {
	var snaps []domain.EquitySnapshot
	for _, s := range snapshots {
		if s.RunID == runID {
			snaps = append(snaps, s)
		}
	}
	var kept []domain.Trade
	for _, t := range trades {
		if t.RunID == runID {
			kept = append(kept, t)
		}
	}
	return snaps, kept
}
