package generate

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"misophonia/internal/config"
	"misophonia/internal/hrtf"
	"misophonia/internal/logging"
	"misophonia/internal/pipeline"
	"misophonia/internal/source"
)

// Options controls sampling.
type Options struct {
	SampleRate       int
	Length           int
	TriggerRatio     float64
	MinForegrounds   int
	MaxForegrounds   int
	ForegroundGainDB []float64
	BackgroundGainDB []float64
	AllowReplacement bool
	PairsPerCategory int
	// PartitionSplits restricts train, val and test requests to their share
	// of the inventory. Other split names always draw from every clip.
	PartitionSplits bool
	// Directions are the positions clips may be placed at.
	Directions []hrtf.Direction
	Logger     *slog.Logger
}

// OptionsFromConfig maps the [generation], [mix] and [audio] sections.
func OptionsFromConfig(cfg *config.Config, directions []hrtf.Direction, logger *slog.Logger) Options {
	return Options{
		SampleRate:       cfg.Audio.SampleRate,
		Length:           cfg.ItemFrames(),
		TriggerRatio:     cfg.Generation.TriggerRatio,
		MinForegrounds:   cfg.Generation.MinForegrounds,
		MaxForegrounds:   cfg.Generation.MaxForegrounds,
		ForegroundGainDB: cfg.Mix.ForegroundGainDB,
		BackgroundGainDB: cfg.Mix.BackgroundGainDB,
		AllowReplacement: cfg.Generation.AllowReplacement,
		PairsPerCategory: cfg.Generation.PairsPerCategory,
		PartitionSplits:  cfg.Generation.PartitionSplits,
		Directions:       directions,
		Logger:           logger,
	}
}

// Request asks for one split.
type Request struct {
	Split string
	// NumSamples is the number of regular items. Zero generates until the
	// foreground pools run out.
	NumSamples           int
	Seed                 int64
	AddExperimentalPairs bool
}

// Generator turns requests into MixSpecs. Generate calls are serialised.
type Generator struct {
	opts     Options
	adapters []source.Adapter
	logger   *slog.Logger

	mu    sync.Mutex
	state State

	clips    map[string]source.Clip
	all      *inventory
	assigned map[string]string
}

// inventory is the clip set one request draws from, sorted by clip ID.
type inventory struct {
	triggers    map[string][]source.Clip
	categories  []string
	controls    []source.Clip
	backgrounds []source.Clip
}

func newInventory(clips []source.Clip) *inventory {
	inv := &inventory{triggers: make(map[string][]source.Clip)}
	for _, c := range clips {
		switch c.Kind {
		case source.KindTrigger:
			inv.triggers[c.Category] = append(inv.triggers[c.Category], c)
		case source.KindControl:
			inv.controls = append(inv.controls, c)
		case source.KindBackground:
			inv.backgrounds = append(inv.backgrounds, c)
		}
	}
	byID := func(a, b source.Clip) int { return cmp.Compare(a.ID, b.ID) }
	for cat, list := range inv.triggers {
		slices.SortFunc(list, byID)
		inv.categories = append(inv.categories, cat)
	}
	slices.Sort(inv.categories)
	slices.SortFunc(inv.controls, byID)
	slices.SortFunc(inv.backgrounds, byID)
	return inv
}

// New returns an uninitialised Generator over adapters.
func New(opts Options, adapters ...source.Adapter) *Generator {
	return &Generator{
		opts:     opts,
		adapters: adapters,
		logger:   logging.NewComponentLogger(opts.Logger, "generator"),
	}
}

// State returns the current lifecycle state.
func (g *Generator) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Categories lists the trigger categories with at least one clip.
func (g *Generator) Categories() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.all == nil {
		return nil
	}
	return slices.Clone(g.all.categories)
}

// SplitOf reports which partition a loaded clip belongs to. ok is false when
// partitioning is off or the clip is unknown.
func (g *Generator) SplitOf(id string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	split, ok := g.assigned[id]
	return split, ok
}

// inventoryFor returns the clips a split may draw from.
func (g *Generator) inventoryFor(split string) (*inventory, error) {
	part, ok := source.CanonicalSplit(split)
	if !g.opts.PartitionSplits || !ok {
		return g.all, nil
	}
	var clips []source.Clip
	for id, c := range g.clips {
		if g.assigned[id] == part {
			clips = append(clips, c)
		}
	}
	inv := newInventory(clips)
	if len(inv.backgrounds) == 0 {
		return nil, &pipeline.InsufficientSourceDataError{Category: part + "/" + string(source.KindBackground), Need: 1, Have: 0}
	}
	return inv, nil
}

// Clip returns a loaded clip by ID.
func (g *Generator) Clip(id string) (source.Clip, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.clips[id]
	return c, ok
}

// Load lists every adapter's inventory and validates it. A successful Load
// moves the Generator to ready; reloading an exhausted Generator resets it.
func (g *Generator) Load(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateGenerating {
		return fmt.Errorf("load while generating: %w", pipeline.ErrGeneratorState)
	}
	if err := g.validateOptions(); err != nil {
		return err
	}
	if len(g.adapters) == 0 {
		return pipeline.Wrap(pipeline.ErrConfiguration, "generator", "load", "no source adapters configured", nil)
	}

	clips := make(map[string]source.Clip)
	var unique []source.Clip
	for _, a := range g.adapters {
		listed, err := a.ListClips(ctx, source.Filter{})
		if err != nil {
			return err
		}
		for _, c := range listed {
			if _, dup := clips[c.ID]; dup {
				continue
			}
			clips[c.ID] = c
			unique = append(unique, c)
		}
	}
	all := newInventory(unique)
	if len(all.backgrounds) == 0 {
		return &pipeline.InsufficientSourceDataError{Category: string(source.KindBackground), Need: 1, Have: 0}
	}

	g.clips = clips
	g.all = all
	g.assigned = nil
	if g.opts.PartitionSplits {
		g.assigned = source.AssignSplits(unique)
	}
	g.state = StateReady

	g.logger.Info("source inventory loaded",
		logging.Int("clips", len(clips)),
		logging.Int("trigger_categories", len(all.categories)),
		logging.Int("controls", len(all.controls)),
		logging.Int("backgrounds", len(all.backgrounds)),
		logging.Bool("partitioned", g.opts.PartitionSplits),
	)
	return nil
}

func (g *Generator) validateOptions() error {
	o := g.opts
	switch {
	case o.SampleRate <= 0:
		return pipeline.Wrap(pipeline.ErrConfiguration, "generator", "load", "sample rate must be positive", nil)
	case o.Length <= 0:
		return pipeline.Wrap(pipeline.ErrConfiguration, "generator", "load", "item length must be positive", nil)
	case len(o.Directions) == 0:
		return pipeline.Wrap(pipeline.ErrConfiguration, "generator", "load", "no render directions available", nil)
	case o.TriggerRatio < 0 || o.TriggerRatio > 1:
		return pipeline.Wrap(pipeline.ErrConfiguration, "generator", "load", "trigger ratio must be within [0, 1]", nil)
	case o.MinForegrounds < 0 || o.MaxForegrounds < o.MinForegrounds:
		return pipeline.Wrap(pipeline.ErrConfiguration, "generator", "load", "invalid foreground count range", nil)
	}
	return nil
}

// Generate plans one split. Balance and pool checks run before any spec is
// built, so a shortage fails the whole request.
func (g *Generator) Generate(ctx context.Context, req Request) ([]MixSpec, error) {
	g.mu.Lock()
	if g.state != StateReady {
		state := g.state
		g.mu.Unlock()
		return nil, fmt.Errorf("generate in state %s: %w", state, pipeline.ErrGeneratorState)
	}
	g.state = StateGenerating
	g.mu.Unlock()

	var (
		specs []MixSpec
		err   error
		next  = StateReady
	)
	switch {
	case req.NumSamples < 0:
		err = pipeline.Wrap(pipeline.ErrValidation, "generator", "generate", fmt.Sprintf("negative sample count %d", req.NumSamples), nil)
	case req.Split == "":
		err = pipeline.Wrap(pipeline.ErrValidation, "generator", "generate", "split name is required", nil)
	case req.NumSamples == 0:
		var inv *inventory
		if inv, err = g.inventoryFor(req.Split); err == nil {
			specs, err = g.generateOpenEnded(ctx, req, inv)
		}
		if err == nil {
			next = StateExhausted
		}
	default:
		var inv *inventory
		if inv, err = g.inventoryFor(req.Split); err == nil {
			specs, err = g.generateFixed(ctx, req, inv)
		}
	}

	g.mu.Lock()
	g.state = next
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sum := Summarize(specs)
	g.logger.Info("split planned",
		logging.String(logging.FieldSplit, req.Split),
		logging.Int64("seed", req.Seed),
		logging.Int("items", sum.Items),
		logging.Int("trigger_items", sum.Triggers),
		logging.Int("pairs", sum.Pairs),
	)
	return specs, nil
}

type itemPlan struct {
	index    int
	trigger  bool
	category string
	k        int
	rng      *rand.Rand
}

type pools struct {
	categories  []string
	triggers    map[string]*pool
	controls    *pool
	backgrounds []source.Clip
}

func newPools(inv *inventory, plan *rand.Rand) pools {
	p := pools{
		categories:  inv.categories,
		triggers:    make(map[string]*pool, len(inv.categories)),
		backgrounds: inv.backgrounds,
	}
	for _, cat := range inv.categories {
		p.triggers[cat] = newPool(cat, inv.triggers[cat], plan)
	}
	p.controls = newPool(string(source.KindControl), inv.controls, plan)
	return p
}

func (g *Generator) drawK(rng *rand.Rand, trigger bool) int {
	k := g.opts.MinForegrounds + rng.IntN(g.opts.MaxForegrounds-g.opts.MinForegrounds+1)
	if trigger && k < 1 {
		k = 1
	}
	return k
}

func (g *Generator) generateFixed(ctx context.Context, req Request, inv *inventory) ([]MixSpec, error) {
	n := req.NumSamples
	planRNG := newRNG(req.Seed, req.Split, "plan")
	categories := inv.categories

	nTrig := int(math.Round(float64(n) * g.opts.TriggerRatio))
	if nTrig > 0 && len(categories) == 0 {
		return nil, &pipeline.InsufficientSourceDataError{Category: string(source.KindTrigger), Need: nTrig, Have: 0}
	}
	isTrigger := make([]bool, n)
	for _, i := range planRNG.Perm(n)[:nTrig] {
		isTrigger[i] = true
	}
	offset := 0
	if len(categories) > 0 {
		offset = planRNG.IntN(len(categories))
	}
	p := newPools(inv, planRNG)

	plans := make([]itemPlan, n)
	trigNeed := make(map[string]int)
	ctrlNeed := 0
	assigned := 0
	for i := range n {
		ip := itemPlan{index: i, trigger: isTrigger[i], rng: itemRNG(req.Seed, req.Split, i)}
		if ip.trigger {
			ip.category = categories[(offset+assigned)%len(categories)]
			assigned++
			trigNeed[ip.category]++
		}
		ip.k = g.drawK(ip.rng, ip.trigger)
		ctrlNeed += ip.k
		if ip.trigger {
			ctrlNeed--
		}
		plans[i] = ip
	}
	pairs := req.AddExperimentalPairs && g.opts.PairsPerCategory > 0 && len(categories) > 0
	if pairs {
		for _, cat := range categories {
			trigNeed[cat] += g.opts.PairsPerCategory
			ctrlNeed += g.opts.PairsPerCategory
		}
	}
	if err := g.checkPools(p, trigNeed, ctrlNeed); err != nil {
		return nil, err
	}

	specs := make([]MixSpec, 0, n)
	for _, ip := range plans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		spec, err := g.buildItem(req, ip, p)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	if pairs {
		paired, err := g.buildPairs(ctx, req, len(specs), p)
		if err != nil {
			return nil, err
		}
		specs = append(specs, paired...)
	}
	return specs, nil
}

// checkPools fails on any shortage, or switches the short pool to sampling
// with replacement when that is allowed.
func (g *Generator) checkPools(p pools, trigNeed map[string]int, ctrlNeed int) error {
	short := func(pl *pool, need int) error {
		have := len(pl.clips)
		if need <= have {
			return nil
		}
		if !g.opts.AllowReplacement || have == 0 {
			return &pipeline.InsufficientSourceDataError{Category: pl.name, Need: need, Have: have}
		}
		logging.WarnWithContext(g.logger, "not enough unique clips; sampling with replacement", "sampling_with_replacement",
			logging.String("category", pl.name),
			logging.Int("need", need),
			logging.Int("have", have),
			logging.String(logging.FieldErrorHint, "add source datasets or lower the sample count"),
			logging.String(logging.FieldImpact, "clips repeat within the split"),
		)
		pl.replace = true
		return nil
	}
	for _, cat := range p.categories {
		if err := short(p.triggers[cat], trigNeed[cat]); err != nil {
			return err
		}
	}
	return short(p.controls, ctrlNeed)
}

func (g *Generator) buildItem(req Request, ip itemPlan, p pools) (MixSpec, error) {
	rng := ip.rng
	spec := MixSpec{
		ID:         itemID(req.Split, req.Seed, ip.index),
		Index:      ip.index,
		Split:      req.Split,
		Seed:       req.Seed,
		SampleRate: g.opts.SampleRate,
		Length:     g.opts.Length,
		Categories: []string{},
		Foreground: make([]Placement, 0, ip.k),
	}
	bg := p.backgrounds[rng.IntN(len(p.backgrounds))]
	spec.Background = g.place(bg, g.direction(rng), 0, uniform(rng, g.opts.BackgroundGainDB))

	for slot := range ip.k {
		var (
			clip source.Clip
			ok   bool
		)
		if slot == 0 && ip.trigger {
			clip, ok = p.triggers[ip.category].take(rng)
		} else {
			clip, ok = p.controls.take(rng)
		}
		if !ok {
			return MixSpec{}, fmt.Errorf("item %d: foreground pool drained: %w", ip.index, pipeline.ErrInsufficientSourceData)
		}
		dir := g.direction(rng)
		gain := uniform(rng, g.opts.ForegroundGainDB)
		onset := g.onset(rng, clip.Frames(g.opts.SampleRate))
		spec.Foreground = append(spec.Foreground, g.place(clip, dir, onset, gain))
	}
	if ip.trigger {
		spec.IsTrigger = true
		spec.Categories = []string{ip.category}
		spec.IsFOAMS = spec.Foreground[0].Corpus == "foams"
	}
	return spec, nil
}

func (g *Generator) place(c source.Clip, dir hrtf.Direction, onset int, gain float64) Placement {
	return Placement{
		ClipID:    c.ID,
		Corpus:    c.Corpus,
		Kind:      c.Kind,
		Category:  c.Category,
		Direction: dir,
		Onset:     onset,
		GainDB:    gain,
	}
}

func (g *Generator) direction(rng *rand.Rand) hrtf.Direction {
	return g.opts.Directions[rng.IntN(len(g.opts.Directions))]
}

// onset is uniform over the positions that keep a clip of frames inside the item.
func (g *Generator) onset(rng *rand.Rand, frames int) int {
	return rng.IntN(max(0, g.opts.Length-frames) + 1)
}

// generateOpenEnded emits items until a foreground pool runs dry.
func (g *Generator) generateOpenEnded(ctx context.Context, req Request, inv *inventory) ([]MixSpec, error) {
	if g.opts.AllowReplacement {
		return nil, pipeline.Wrap(pipeline.ErrValidation, "generator", "generate",
			"open-ended generation requires sampling without replacement", nil)
	}
	if g.opts.MaxForegrounds == 0 {
		return nil, pipeline.Wrap(pipeline.ErrValidation, "generator", "generate",
			"open-ended generation needs at least one foreground per item", nil)
	}
	planRNG := newRNG(req.Seed, req.Split, "plan")
	categories := inv.categories
	offset := 0
	if len(categories) > 0 {
		offset = planRNG.IntN(len(categories))
	}
	p := newPools(inv, planRNG)

	var specs []MixSpec
	triggers := 0
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ip := itemPlan{index: i, rng: itemRNG(req.Seed, req.Split, i)}
		if int(math.Round(float64(i+1)*g.opts.TriggerRatio)) > triggers {
			if len(categories) == 0 {
				break
			}
			ip.trigger = true
			ip.category = categories[(offset+triggers)%len(categories)]
		}
		ip.k = g.drawK(ip.rng, ip.trigger)
		ctrl := ip.k
		if ip.trigger {
			if p.triggers[ip.category].remaining() < 1 {
				break
			}
			ctrl--
		}
		if p.controls.remaining() < ctrl {
			break
		}
		spec, err := g.buildItem(req, ip, p)
		if err != nil {
			if errors.Is(err, pipeline.ErrInsufficientSourceData) {
				break
			}
			return nil, err
		}
		if ip.trigger {
			triggers++
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
