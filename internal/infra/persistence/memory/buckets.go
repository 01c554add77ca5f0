package memory

import (
	"encoding/json"
	"fmt"
)

// Bucket names used by the snapshotting SQL stores. Each bucket holds one
// JSON document.
const (
	BucketAnimals        = "animals"
	BucketBreedingEvents = "breeding_events"
	BucketSequences      = "sequences"
)

// Buckets lists every bucket in persistence order.
var Buckets = []string{BucketAnimals, BucketBreedingEvents, BucketSequences}

type sequences struct {
	Animal        int64 `json:"animal"`
	BreedingEvent int64 `json:"breeding_event"`
}

// EncodeBuckets serialises a snapshot into one JSON payload per bucket.
func EncodeBuckets(snapshot Snapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	var err error
	if out[BucketAnimals], err = json.Marshal(snapshot.Animals); err != nil {
		return nil, fmt.Errorf("encode %s: %w", BucketAnimals, err)
	}
	if out[BucketBreedingEvents], err = json.Marshal(snapshot.Events); err != nil {
		return nil, fmt.Errorf("encode %s: %w", BucketBreedingEvents, err)
	}
	seq := sequences{Animal: snapshot.AnimalSeq, BreedingEvent: snapshot.EventSeq}
	if out[BucketSequences], err = json.Marshal(seq); err != nil {
		return nil, fmt.Errorf("encode %s: %w", BucketSequences, err)
	}
	return out, nil
}

// DecodeBucket applies a single bucket payload onto snapshot. Unknown buckets
// and empty payloads are ignored.
func DecodeBucket(snapshot *Snapshot, bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var err error
	switch bucket {
	case BucketAnimals:
		err = json.Unmarshal(payload, &snapshot.Animals)
	case BucketBreedingEvents:
		err = json.Unmarshal(payload, &snapshot.Events)
	case BucketSequences:
		var seq sequences
		if err = json.Unmarshal(payload, &seq); err == nil {
			snapshot.AnimalSeq = seq.Animal
			snapshot.EventSeq = seq.BreedingEvent
		}
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
