package coordinator

import (
	"context"
	"fmt"

	"github.com/nao1215/surveilscope/internal/config"
)

// UpdateSettings merges patch into the current settings. Custom trackers are
// added to the known-tracker set; trackers already known are never removed.
func (c *Coordinator) UpdateSettings(ctx context.Context, patch config.SettingsPatch) (config.Settings, error) {
	merged := c.settings.Merge(patch)
	if err := merged.Validate(); err != nil {
		return c.Settings(), fmt.Errorf("invalid settings: %w", err)
	}
	c.applySettings(merged)
	c.logger.InfoContext(ctx, "settings updated",
		"risk_threshold", merged.RiskThreshold,
		"retention_days", merged.DataRetentionDays,
		"custom_trackers", len(merged.CustomTrackers),
	)
	c.commit()
	return c.Settings(), nil
}

func (c *Coordinator) applySettings(s config.Settings) {
	c.settings = s.Clone()
	c.addTrackers(c.settings.CustomTrackers...)
	c.markDirty(keySettings)
}

// addTrackers grows the known-tracker set and rescores the tracking ledger
// when it changed, since the known-tracker bonus depends on it.
func (c *Coordinator) addTrackers(domains ...string) {
	if c.classifier.AddCustomTrackers(domains...) == 0 {
		return
	}
	if c.tracking.Rescore() > 0 {
		c.markDirty(keyTrackingDatabase)
	}
}

// PruneExpired drops timeline days older than the retention window and
// returns how many timelines were removed. A retention of zero days keeps
// everything.
func (c *Coordinator) PruneExpired(ctx context.Context) int {
	days := c.settings.DataRetentionDays
	if days <= 0 {
		return 0
	}
	cutoff := c.clock().AddDate(0, 0, -days)
	removed := c.tracker.PruneBefore(cutoff)
	if removed > 0 {
		c.markDirty(keyFingerprintTimeline)
		c.logger.InfoContext(ctx, "pruned expired timelines", "removed", removed, "cutoff", cutoff)
		c.commit()
	}
	return removed
}
