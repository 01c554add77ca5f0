// Command herdbook is the operator CLI for the breeding genealogy engine. It
// opens the store configured through HERDBOOK_* environment variables and
// prints JSON results.
//
// Commands:
//
//	animal add     Register an animal (-code, -species, -breed, -gender, -sire, -dam)
//	animal show    Print one animal
//	classify A B   Classify the relationship between two animals
//	mates ID       List risk-free mates for an animal
//	predict M F    Predict the outcome of pairing male M with female F
//	breed          Create a breeding event (-male, -female, -date)
//	birth          Record a birth (-event, -date, -count)
//	status         Resolve a pending event (-event, -status)
//	stats          Summarize breeding events (-species, -animal, -status)
//	litters        List archived litter reports (-species)
//	species        Print the species catalog
//	version        Print the build version
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"herdbook/internal/config"
	"herdbook/internal/core"
	"herdbook/pkg/domain"
)

const dateLayout = "2006-01-02"

var exitFunc = os.Exit

// openService is replaced in tests.
var openService = func(ctx context.Context, stderr io.Writer) (*core.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := config.SetupLogger(cfg, stderr)
	svc, err := core.OpenService(ctx, cfg, core.NewSlogLogger(logger), nil)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {}
	if c, ok := svc.Store().(io.Closer); ok {
		closeFn = func() {
			if err := c.Close(); err != nil {
				logger.Warn("closing store", "error", err)
			}
		}
	}
	return svc, closeFn, nil
}

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

// cli runs one command and returns the process exit code: 0 on success, 1 on
// operation failure and 2 on usage errors.
func cli(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	case "version":
		fmt.Fprintf(stdout, "herdbook %s\n", config.Version)
		return 0
	}
	handler, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(stderr, "unknown command: %s\n\n", cmd)
		printUsage(stderr)
		return 2
	}

	ctx := context.Background()
	svc, closeFn, err := openService(ctx, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "herdbook: %v\n", err)
		return 1
	}
	defer closeFn()

	result, err := handler(ctx, svc, rest, stderr)
	var usage usageError
	switch {
	case errors.As(err, &usage):
		fmt.Fprintf(stderr, "herdbook %s: %v\n", cmd, err)
		return 2
	case err != nil:
		fmt.Fprintf(stderr, "herdbook %s: %v\n", cmd, err)
		return 1
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(stderr, "herdbook %s: encode output: %v\n", cmd, err)
		return 1
	}
	return 0
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

type handlerFunc func(ctx context.Context, svc *core.Service, args []string, stderr io.Writer) (any, error)

var commands = map[string]handlerFunc{
	"animal":   runAnimal,
	"classify": runClassify,
	"mates":    runMates,
	"predict":  runPredict,
	"breed":    runBreed,
	"birth":    runBirth,
	"status":   runStatus,
	"stats":    runStats,
	"litters":  runLitters,
	"species":  runSpecies,
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: herdbook <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  animal add|show   Register or print an animal")
	fmt.Fprintln(w, "  classify A B      Classify the relationship between two animals")
	fmt.Fprintln(w, "  mates ID          List risk-free mates for an animal")
	fmt.Fprintln(w, "  predict M F       Predict a pairing outcome")
	fmt.Fprintln(w, "  breed             Create a breeding event")
	fmt.Fprintln(w, "  birth             Record a birth")
	fmt.Fprintln(w, "  status            Resolve a pending breeding event")
	fmt.Fprintln(w, "  stats             Summarize breeding events")
	fmt.Fprintln(w, "  litters           List archived litter reports")
	fmt.Fprintln(w, "  species           Print the species catalog")
	fmt.Fprintln(w, "  version           Print version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Storage, archive and logging are configured with HERDBOOK_* environment variables.")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, usagef("invalid id %q", s)
	}
	return id, nil
}

func parseIDs(args []string, want int) ([]int64, error) {
	if len(args) != want {
		return nil, usagef("expected %d ids, got %d", want, len(args))
	}
	ids := make([]int64, 0, want)
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, usagef("-%s is required", name)
	}
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, usagef("-%s must be YYYY-MM-DD: %v", name, err)
	}
	return d, nil
}

// optionalID maps 0 to nil.
func optionalID(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

func runAnimal(ctx context.Context, svc *core.Service, args []string, stderr io.Writer) (any, error) {
	if len(args) == 0 {
		return nil, usagef("expected add or show")
	}
	switch args[0] {
	case "show":
		ids, err := parseIDs(args[1:], 1)
		if err != nil {
			return nil, err
		}
		return svc.GetAnimal(ctx, ids[0])
	case "add":
		fs := newFlagSet("animal add", stderr)
		code := fs.String("code", "", "animal code (required)")
		speciesType := fs.String("species", "rabbit", "species type")
		breed := fs.String("breed", "", "breed name")
		gender := fs.String("gender", "", "male or female (required)")
		sire := fs.Int64("sire", 0, "sire id")
		dam := fs.Int64("dam", 0, "dam id")
		name := fs.String("name", "", "display name")
		born := fs.String("born", "", "date of birth (YYYY-MM-DD)")
		if err := fs.Parse(args[1:]); err != nil {
			return nil, usagef("%v", err)
		}
		if *code == "" || *gender == "" {
			return nil, usagef("-code and -gender are required")
		}
		animal := domain.Animal{
			Code:           *code,
			Name:           *name,
			SpeciesType:    *speciesType,
			Breed:          *breed,
			Gender:         domain.Gender(*gender),
			ParentMaleID:   optionalID(*sire),
			ParentFemaleID: optionalID(*dam),
		}
		if *born != "" {
			d, err := parseDate("born", *born)
			if err != nil {
				return nil, err
			}
			animal.DateOfBirth = &d
		}
		created, _, err := svc.CreateAnimal(ctx, animal)
		return created, err
	default:
		return nil, usagef("unknown animal subcommand %q", args[0])
	}
}

func runClassify(ctx context.Context, svc *core.Service, args []string, _ io.Writer) (any, error) {
	ids, err := parseIDs(args, 2)
	if err != nil {
		return nil, err
	}
	return svc.ClassifyPair(ctx, ids[0], ids[1])
}

func runMates(ctx context.Context, svc *core.Service, args []string, _ io.Writer) (any, error) {
	ids, err := parseIDs(args, 1)
	if err != nil {
		return nil, err
	}
	return svc.PotentialMates(ctx, ids[0])
}

func runPredict(ctx context.Context, svc *core.Service, args []string, _ io.Writer) (any, error) {
	ids, err := parseIDs(args, 2)
	if err != nil {
		return nil, err
	}
	pred, assessment, err := svc.PredictPairing(ctx, ids[0], ids[1])
	if err != nil {
		return nil, err
	}
	return struct {
		Prediction core.Prediction     `json:"prediction"`
		Assessment core.PairAssessment `json:"assessment"`
	}{pred, assessment}, nil
}

func runBreed(ctx context.Context, svc *core.Service, args []string, stderr io.Writer) (any, error) {
	fs := newFlagSet("breed", stderr)
	male := fs.Int64("male", 0, "male id (required)")
	female := fs.Int64("female", 0, "female id (required)")
	date := fs.String("date", "", "breeding date YYYY-MM-DD (required)")
	notes := fs.String("notes", "", "notes")
	if err := fs.Parse(args); err != nil {
		return nil, usagef("%v", err)
	}
	if *male <= 0 || *female <= 0 {
		return nil, usagef("-male and -female are required")
	}
	breedingDate, err := parseDate("date", *date)
	if err != nil {
		return nil, err
	}
	event, _, err := svc.CreateBreedingEvent(ctx, core.BreedingEventInput{
		MaleID:       *male,
		FemaleID:     *female,
		BreedingDate: breedingDate,
		Notes:        *notes,
	})
	return event, err
}

func runBirth(ctx context.Context, svc *core.Service, args []string, stderr io.Writer) (any, error) {
	fs := newFlagSet("birth", stderr)
	event := fs.Int64("event", 0, "breeding event id (required)")
	date := fs.String("date", "", "birth date YYYY-MM-DD (required)")
	count := fs.Int("count", 0, "number of offspring")
	if err := fs.Parse(args); err != nil {
		return nil, usagef("%v", err)
	}
	if *event <= 0 {
		return nil, usagef("-event is required")
	}
	born, err := parseDate("date", *date)
	if err != nil {
		return nil, err
	}
	out, _, err := svc.RecordBirth(ctx, *event, core.BirthRecord{ActualBirthDate: born, ActualOffspringCount: *count})
	return out, err
}

func runStatus(ctx context.Context, svc *core.Service, args []string, stderr io.Writer) (any, error) {
	fs := newFlagSet("status", stderr)
	event := fs.Int64("event", 0, "breeding event id (required)")
	status := fs.String("status", "", "successful or unsuccessful (required)")
	if err := fs.Parse(args); err != nil {
		return nil, usagef("%v", err)
	}
	if *event <= 0 || *status == "" {
		return nil, usagef("-event and -status are required")
	}
	updated, _, err := svc.UpdateBreedingEventStatus(ctx, *event, domain.EventStatus(*status))
	return updated, err
}

func runStats(ctx context.Context, svc *core.Service, args []string, stderr io.Writer) (any, error) {
	fs := newFlagSet("stats", stderr)
	speciesType := fs.String("species", "", "species type")
	animal := fs.Int64("animal", 0, "participant animal id")
	status := fs.String("status", "", "event status")
	if err := fs.Parse(args); err != nil {
		return nil, usagef("%v", err)
	}
	return svc.BreedingStats(ctx, core.EventFilter{
		SpeciesType: *speciesType,
		AnimalID:    optionalID(*animal),
		Status:      domain.EventStatus(*status),
	})
}

func runLitters(ctx context.Context, svc *core.Service, args []string, stderr io.Writer) (any, error) {
	fs := newFlagSet("litters", stderr)
	speciesType := fs.String("species", "", "species type")
	if err := fs.Parse(args); err != nil {
		return nil, usagef("%v", err)
	}
	archive := svc.LitterArchive()
	if archive == nil {
		return nil, errors.New("litter archive disabled; set HERDBOOK_BLOB_DRIVER")
	}
	return archive.List(ctx, *speciesType)
}

type speciesView struct {
	GestationDays  int     `json:"gestation_days"`
	LitterBase     int     `json:"litter_base"`
	OffspringValue float64 `json:"offspring_value"`
	MaleRatio      float64 `json:"male_ratio"`
	WeanDays       int     `json:"wean_days"`
}

func runSpecies(_ context.Context, svc *core.Service, _ []string, _ io.Writer) (any, error) {
	catalog := svc.Species()
	out := make(map[string]speciesView)
	for _, name := range catalog.Names() {
		p := catalog.Lookup(name)
		out[name] = speciesView{
			GestationDays:  p.GestationDays,
			LitterBase:     p.LitterBase,
			OffspringValue: p.OffspringValue,
			MaleRatio:      p.MaleRatio,
			WeanDays:       p.WeanDays,
		}
	}
	return out, nil
}
