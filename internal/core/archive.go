package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"herdbook/internal/blob"
)

const litterPrefix = "litters"

// LitterReport is the archived record of one birth.
type LitterReport struct {
	Event      BreedingEvent `json:"event"`
	Offspring  []Animal      `json:"offspring"`
	ArchivedAt time.Time     `json:"archived_at"`
}

// LitterArchive stores litter reports as JSON blobs keyed by species and
// event code. Each event is written once.
type LitterArchive struct {
	store blob.Store
}

// NewLitterArchive returns an archive over store.
func NewLitterArchive(store blob.Store) *LitterArchive {
	return &LitterArchive{store: store}
}

// Key returns the blob key for event: litters/{species}/{eventCode}.json.
func (a *LitterArchive) Key(event BreedingEvent) string {
	species := strings.ToLower(strings.TrimSpace(event.SpeciesType))
	if species == "" {
		species = "unknown"
	}
	return path.Join(litterPrefix, species, event.EventCode+".json")
}

// Archive writes report. It fails with blob.ErrExists when the event was
// already archived.
func (a *LitterArchive) Archive(ctx context.Context, report LitterReport) (blob.Info, error) {
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode litter report: %w", err)
	}
	info, err := a.store.Put(ctx, a.Key(report.Event), bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"event_id":        fmt.Sprintf("%d", report.Event.ID),
			"offspring_count": fmt.Sprintf("%d", len(report.Offspring)),
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store litter report %s: %w", report.Event.EventCode, err)
	}
	return info, nil
}

// Load reads back the report archived for event.
func (a *LitterArchive) Load(ctx context.Context, event BreedingEvent) (LitterReport, error) {
	_, rc, err := a.store.Get(ctx, a.Key(event))
	if err != nil {
		return LitterReport{}, err
	}
	defer rc.Close()
	var report LitterReport
	if err := json.NewDecoder(rc).Decode(&report); err != nil {
		return LitterReport{}, fmt.Errorf("decode litter report: %w", err)
	}
	return report, nil
}

// List returns the archived reports for species, or all species when empty.
func (a *LitterArchive) List(ctx context.Context, species string) ([]blob.Info, error) {
	prefix := litterPrefix + "/"
	if s := strings.ToLower(strings.TrimSpace(species)); s != "" {
		prefix = path.Join(litterPrefix, s) + "/"
	}
	return a.store.List(ctx, prefix)
}
