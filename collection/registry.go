package collection

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nfx/storable/app"
	"github.com/nfx/storable/eval"
	"github.com/nfx/storable/match"
	"github.com/nfx/storable/selector"
	"github.com/nfx/storable/store"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var (
	queriesServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storable",
		Name:      "queries_total",
		Help:      "Selector evaluations served per collection",
	}, []string{"collection"})
	mutationsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storable",
		Name:      "mutations_total",
		Help:      "Batched mutations applied per collection",
	}, []string{"collection", "kind"})
)

func init() {
	prometheus.MustRegister(queriesServed, mutationsApplied)
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(time.Time{})
}

type queryRequest struct {
	Collection string
	Selector   selector.Selector
	Options    eval.Options
	Distinct   string
	Tally      string
	Pluck      []string
	out        chan queryResults
}

type queryResults struct {
	Total    int           `json:"total"`
	Records  []any         `json:"records,omitempty"`
	Values   []any         `json:"values,omitempty"`
	Buckets  []eval.Bucket `json:"buckets,omitempty"`
	Err      error         `json:"-"`
	ErrorMsg string        `json:"error,omitempty"`
}

type insertRequest struct {
	Collection string
	Schema     *Schema
	Attrs      map[string]any
	Children   map[string][]map[string]any
	out        chan *Doc
}

type getRequest struct {
	ID  string
	out chan *Doc
}

type removeRequest struct {
	ID  string
	out chan removeResult
}

type removeResult struct {
	Deleted int
	Err     error
}

type updateRequest struct {
	Collection string
	Selector   selector.Selector
	Attrs      map[string]any
	All        bool
	out        chan error
}

// Registry owns every named in-memory collection and serializes all
// access through one goroutine. Mutations write through to the journal
// before the response leaves the loop.
type Registry struct {
	locale  string
	norm    selector.Normalizer
	matcher *match.Default
	journal *store.Journal

	insert chan insertRequest
	query  chan queryRequest
	get    chan getRequest
	remove chan removeRequest
	update chan updateRequest

	schemas map[string]*Schema
	docs    map[string][]*Doc
}

func NewRegistry(journal *store.Journal) *Registry {
	return &Registry{
		matcher: match.New(),
		journal: journal,
		insert:  make(chan insertRequest),
		query:   make(chan queryRequest),
		get:     make(chan getRequest),
		remove:  make(chan removeRequest),
		update:  make(chan updateRequest),
		schemas: map[string]*Schema{},
		docs:    map[string][]*Doc{},
	}
}

func (r *Registry) Configure(c app.Config) error {
	r.locale = c.StrOr("locale", "en")
	zone := c.StrOr("timezone", "UTC")
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	r.norm = selector.Normalizer{Location: loc}
	return nil
}

func (r *Registry) Start(ctx app.Context) {
	go r.main(ctx)
}

func (r *Registry) main(ctx app.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-r.query:
			log := app.Log.From(ctx.Ctx())
			log.Trace().
				Str("collection", q.Collection).
				Stringer("selector", q.Selector).
				Msg("query")
			q.out <- r.handleQuery(q)
		case i := <-r.insert:
			i.out <- r.handleInsert(i)
			ctx.Heartbeat()
		case g := <-r.get:
			g.out <- r.find(g.ID)
		case d := <-r.remove:
			d.out <- r.handleRemove(d)
			ctx.Heartbeat()
		case u := <-r.update:
			u.out <- r.handleUpdate(u)
			ctx.Heartbeat()
		}
	}
}

func (r *Registry) handleInsert(i insertRequest) *Doc {
	if i.Schema != nil {
		r.schemas[i.Collection] = i.Schema
	}
	doc := NewDoc(r.schemas[i.Collection], r.locale, i.Attrs)
	for assoc, children := range i.Children {
		for _, attrs := range children {
			doc.Embed(assoc, attrs)
		}
	}
	r.docs[i.Collection] = append(r.docs[i.Collection], doc)
	mutationsApplied.WithLabelValues(i.Collection, "insert").Inc()
	return doc
}

func (r *Registry) candidates(collection string) []any {
	docs := r.docs[collection]
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}

// summary lists every named collection with its record count.
func (r *Registry) summary() queryResults {
	names := maps.Keys(r.docs)
	slices.Sort(names)
	res := queryResults{}
	for _, name := range names {
		res.Records = append(res.Records, map[string]any{
			"collection": name,
			"count":      len(r.docs[name]),
		})
		res.Total += len(r.docs[name])
	}
	return res
}

func (r *Registry) handleQuery(q queryRequest) queryResults {
	if q.Collection == "" {
		return r.summary()
	}
	queriesServed.WithLabelValues(q.Collection).Inc()
	ctx, err := eval.NewMemory(r.candidates(q.Collection), q.Selector, r.matcher, q.Options)
	if err != nil {
		return queryResults{Err: err, ErrorMsg: err.Error()}
	}
	switch {
	case q.Distinct != "":
		return queryResults{Values: ctx.Distinct(q.Distinct), Total: ctx.Count()}
	case q.Tally != "":
		return queryResults{Buckets: ctx.Tally(q.Tally, true), Total: ctx.Count()}
	case len(q.Pluck) > 0:
		return queryResults{Values: ctx.Pluck(q.Pluck...), Total: ctx.Count()}
	}
	res := queryResults{Total: ctx.Count()}
	ctx.Each(func(record any) {
		if d, ok := record.(*Doc); ok {
			res.Records = append(res.Records, d.Attributes())
			return
		}
		res.Records = append(res.Records, record)
	})
	return res
}

func (r *Registry) find(id string) *Doc {
	for _, docs := range r.docs {
		for _, d := range docs {
			if fmt.Sprint(d.ID()) == id {
				return d
			}
		}
	}
	return nil
}

func (r *Registry) handleRemove(req removeRequest) removeResult {
	for name := range r.docs {
		ctx, err := eval.NewMemory(r.candidates(name),
			selector.D("_id", req.ID), r.matcher, eval.Options{})
		if err != nil {
			return removeResult{Err: err}
		}
		deleted, err := ctx.DeleteAll(r.journal)
		if deleted == 0 && err == nil {
			continue
		}
		r.sweep(name)
		mutationsApplied.WithLabelValues(name, "delete").Inc()
		return removeResult{Deleted: deleted, Err: err}
	}
	return removeResult{}
}

// sweep drops destroyed top-level records, which cannot detach themselves.
func (r *Registry) sweep(collection string) {
	kept := make([]*Doc, 0, len(r.docs[collection]))
	for _, d := range r.docs[collection] {
		if d.Destroyed() {
			continue
		}
		kept = append(kept, d)
	}
	r.docs[collection] = kept
}

func (r *Registry) handleUpdate(req updateRequest) error {
	ctx, err := eval.NewMemory(r.candidates(req.Collection), req.Selector, r.matcher, eval.Options{})
	if err != nil {
		return err
	}
	if req.All {
		err = ctx.UpdateAll(req.Attrs, r.journal)
	} else {
		err = ctx.Update(req.Attrs, r.journal)
	}
	if err == nil {
		mutationsApplied.WithLabelValues(req.Collection, "update").Inc()
	}
	return err
}

// Insert adds a record outside the HTTP surface, mainly for wiring and
// tests of collaborating services.
func (r *Registry) Insert(collection string, schema *Schema, attrs map[string]any) *Doc {
	out := make(chan *Doc)
	defer close(out)
	r.insert <- insertRequest{
		Collection: collection,
		Schema:     schema,
		Attrs:      attrs,
		out:        out,
	}
	return <-out
}

func (r *Registry) Query(collection string, sel selector.Selector, opts eval.Options) ([]any, error) {
	out := make(chan queryResults)
	defer close(out)
	r.query <- queryRequest{
		Collection: collection,
		Selector:   sel,
		Options:    opts,
		out:        out,
	}
	res := <-out
	return res.Records, res.Err
}

func (r *Registry) Update(collection string, sel selector.Selector, attrs map[string]any, all bool) error {
	out := make(chan error)
	defer close(out)
	r.update <- updateRequest{
		Collection: collection,
		Selector:   sel,
		Attrs:      attrs,
		All:        all,
		out:        out,
	}
	return <-out
}

func (r *Registry) HttpGet(req *http.Request) (interface{}, error) {
	q := queryRequest{
		Collection: req.FormValue("c"),
		Distinct:   req.FormValue("distinct"),
		Tally:      req.FormValue("tally"),
		out:        make(chan queryResults),
	}
	defer close(q.out)
	var err error
	if raw := req.FormValue("filter"); raw != "" {
		err = json.Unmarshal([]byte(raw), &q.Selector)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
	}
	if raw := req.FormValue("sort"); raw != "" {
		spec, err := selector.ParseSort(raw)
		if err != nil {
			return nil, fmt.Errorf("sort: %w", err)
		}
		q.Options.Sort = spec
	}
	q.Selector, err = r.timeWindow(req, q.Selector)
	if err != nil {
		return nil, err
	}
	if raw := req.FormValue("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("skip: %w", err)
		}
		q.Options.Skip = skip
	}
	if raw := req.FormValue("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("limit: %w", err)
		}
		q.Options.Limit = eval.LimitOf(limit)
	}
	if raw := req.FormValue("pluck"); raw != "" {
		q.Pluck = append(q.Pluck, raw)
	}
	r.query <- q
	res := <-q.out
	return res, res.Err
}

// timeWindow merges optional after/before bounds on a timestamp field
// into the filter. Bounds evolve through the configured location, so a
// bare calendar date reads as local midnight.
func (r *Registry) timeWindow(req *http.Request, sel selector.Selector) (selector.Selector, error) {
	field := req.FormValue("on")
	if field == "" {
		field = "created_at"
	}
	bounds := []struct {
		param string
		op    string
	}{
		{"after", selector.Gte},
		{"before", selector.Lt},
	}
	for _, b := range bounds {
		t, ok, err := r.norm.EvolveTime(req.FormValue(b.param))
		if err != nil {
			return sel, fmt.Errorf("%s: %w", b.param, err)
		}
		if !ok {
			continue
		}
		sel, err = selector.AddFieldExpression(sel, field, selector.D(b.op, t))
		if err != nil {
			return sel, err
		}
	}
	return sel, nil
}

func (r *Registry) HttpGetByID(id string, req *http.Request) (interface{}, error) {
	out := make(chan *Doc)
	defer close(out)
	r.get <- getRequest{ID: id, out: out}
	d := <-out
	if d == nil {
		return nil, app.NotFound("record not found: " + id)
	}
	return d.Attributes(), nil
}

func (r *Registry) HttpDeletetByID(id string, req *http.Request) (interface{}, error) {
	out := make(chan removeResult)
	defer close(out)
	r.remove <- removeRequest{ID: id, out: out}
	res := <-out
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Deleted == 0 {
		return nil, app.NotFound("record not found: " + id)
	}
	return map[string]int{"deleted": res.Deleted}, nil
}

type insertPayload struct {
	Collection string                      `json:"collection"`
	Schema     *Schema                     `json:"schema,omitempty"`
	Attrs      map[string]any              `json:"attrs"`
	Children   map[string][]map[string]any `json:"children,omitempty"`
}

func (r *Registry) HttpPost(req *http.Request) (interface{}, error) {
	var payload insertPayload
	err := json.NewDecoder(req.Body).Decode(&payload)
	if err != nil {
		return nil, err
	}
	if payload.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	out := make(chan *Doc)
	defer close(out)
	r.insert <- insertRequest{
		Collection: payload.Collection,
		Schema:     payload.Schema,
		Attrs:      payload.Attrs,
		Children:   payload.Children,
		out:        out,
	}
	return (<-out).Attributes(), nil
}

type collectionState struct {
	Schema *Schema
	Docs   []map[string]any
}

type registryState struct {
	Locale      string
	Collections map[string]collectionState
}

func (r *Registry) MarshalBinary() ([]byte, error) {
	state := registryState{
		Locale:      r.locale,
		Collections: map[string]collectionState{},
	}
	for name, docs := range r.docs {
		cs := collectionState{Schema: r.schemas[name]}
		for _, d := range docs {
			cs.Docs = append(cs.Docs, d.Attributes())
		}
		state.Collections[name] = cs
	}
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(state)
	return buf.Bytes(), err
}

func (r *Registry) UnmarshalBinary(data []byte) error {
	var state registryState
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state)
	if err != nil {
		return err
	}
	if state.Locale != "" {
		r.locale = state.Locale
	}
	for name, cs := range state.Collections {
		r.schemas[name] = cs.Schema
		for _, attrs := range cs.Docs {
			r.docs[name] = append(r.docs[name], r.rebuild(cs.Schema, attrs))
		}
	}
	return nil
}

// rebuild re-wraps embedded child maps back into linked records, so that
// restored state keeps atomic addressing.
func (r *Registry) rebuild(schema *Schema, attrs map[string]any) *Doc {
	doc := NewDoc(schema, r.locale, attrs)
	if schema == nil {
		return doc
	}
	for _, assoc := range schema.Embedded {
		seq, ok := attrs[assoc].([]any)
		if !ok {
			continue
		}
		delete(attrs, assoc)
		for _, elem := range seq {
			child, ok := elem.(map[string]any)
			if !ok {
				continue
			}
			doc.Embed(assoc, child)
		}
	}
	return doc
}
