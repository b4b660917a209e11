// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package indexer is the one serialized pipeline stage between the
// Watcher and the graph's subscribers: extract → resolve → heuristic-link
// → AI-bridge → commit → diff → broadcast. Exactly one goroutine drives
// ProcessBatch at a time; many goroutines may hold a Subscription.
//
// It generalizes the teacher's LocalPipeline.Run/parseFilesParallel
// phased-run shape (logged phases with duration tracking, a jobs/results
// channel worker pool for CPU-bound parsing) from a one-shot ingestion
// run into a long-lived task fed a stream of debounced batches.
package indexer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	sitter "github.com/smacker/go-tree-sitter"

	"canopy/internal/aibridge"
	"canopy/internal/configextract"
	"canopy/internal/diffengine"
	"canopy/internal/extract"
	"canopy/internal/graph"
	"canopy/internal/heuristic"
	"canopy/internal/parsecache"
	"canopy/internal/resolve"
	"canopy/internal/symtab"
	"canopy/internal/watch"
	"canopy/pkg/fingerprint"
)

// defaultMinAIAdmitConfidence is the floor every Indexer starts with
// before its owner calls SetMinAIConfidence with the configured
// threshold: a low-confidence guess is worse than leaving the reference
// unresolved, so suggestions below it are dropped rather than admitted
// as a SemanticReference edge.
const defaultMinAIAdmitConfidence = 0.5

// fileState is the lifecycle record the spec's Untracked → Extracted{v}
// → Stale → Extracted{v+1} | Removed machine reduces to in practice: the
// version counter and the node IDs the last successful extraction of
// this path produced, which must be torn down before a re-extraction or
// removal can proceed so cross-file edges never bridge snapshots.
type fileState struct {
	version int
	nodeIDs []string
	qnames  []string // parallel to nodeIDs, for symtab.Remove which needs both
}

// Metrics holds the Prometheus collectors an Indexer reports through.
// Register once per process; NewMetrics panics on a duplicate
// registration, matching promauto's own behavior, so callers own the
// registry lifetime.
type Metrics struct {
	BatchesProcessed prometheus.Counter
	FilesIndexed     prometheus.Counter
	FileErrors       prometheus.Counter
	BatchDuration    prometheus.Histogram
}

// NewMetrics registers a fresh Metrics set against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BatchesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canopy_indexer_batches_processed_total",
			Help: "Number of debounce batches committed to the graph.",
		}),
		FilesIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canopy_indexer_files_indexed_total",
			Help: "Number of files successfully extracted.",
		}),
		FileErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "canopy_indexer_file_errors_total",
			Help: "Number of files that failed extraction.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "canopy_indexer_batch_duration_seconds",
			Help:    "Wall time to process one debounce batch end to end.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.BatchesProcessed, m.FilesIndexed, m.FileErrors, m.BatchDuration)
	return m
}

// Indexer owns the Graph Store, symbol table, and parse cache, and is the
// only writer to any of them. Subscribers only ever read diffs off a
// channel.
type Indexer struct {
	Store    *graph.Store
	Table    *symtab.Table
	Registry *extract.Registry
	Cache    *parsecache.Cache
	Bridge   aibridge.Bridge
	Diffs    *diffengine.Engine
	Logger   *slog.Logger
	Metrics  *Metrics

	// MinAIConfidence is the floor an AI Bridge suggestion's confidence
	// must meet, inclusive, to be admitted as a SemanticReference edge.
	// Set via SetMinAIConfidence from config.AIBridgeConfig.ConfidenceThreshold.
	MinAIConfidence float64

	RootNodeID string // containment root every File node hangs off of

	mu       sync.Mutex // serializes ProcessBatch; the pipeline's single-writer guarantee
	files    map[string]*fileState
	versions map[string]int // survives retract, so a re-extraction's version keeps counting up

	subMu sync.Mutex
	subs  map[string]chan *diffengine.Diff
}

// New returns an Indexer ready to process batches against store, rooted
// at rootNodeID (typically the WorkspaceRoot or Directory node workspace
// detection produced at startup).
func New(store *graph.Store, rootNodeID string, registry *extract.Registry, bridge aibridge.Bridge, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	if bridge == nil {
		bridge = aibridge.NullBridge{}
	}
	return &Indexer{
		Store:           store,
		Table:           symtab.NewTable(),
		Registry:        registry,
		Cache:           parsecache.New(true),
		Bridge:          bridge,
		Diffs:           diffengine.New(),
		Logger:          logger,
		MinAIConfidence: defaultMinAIAdmitConfidence,
		RootNodeID:      rootNodeID,
		files:           make(map[string]*fileState),
		versions:        make(map[string]int),
		subs:            make(map[string]chan *diffengine.Diff),
	}
}

// SetMinAIConfidence overrides the floor an AI Bridge suggestion must
// meet to be admitted as a SemanticReference edge, typically from
// config.AIBridgeConfig.ConfidenceThreshold.
func (idx *Indexer) SetMinAIConfidence(threshold float64) {
	idx.MinAIConfidence = threshold
}

// Subscribe registers a new diff recipient and returns its ID (for
// Unsubscribe) and its channel. The channel is closed on Unsubscribe; a
// subscriber that stops draining it is responsible for reading fast
// enough not to block ProcessBatch — the channel is buffered, not
// unbounded, matching the spec's "falls behind, gets a close signal and
// must resync" discipline enforced one level up in the Control API.
func (idx *Indexer) Subscribe() (string, <-chan *diffengine.Diff) {
	id := uuid.NewString()
	ch := make(chan *diffengine.Diff, 32)
	idx.subMu.Lock()
	idx.subs[id] = ch
	idx.subMu.Unlock()
	return id, ch
}

// Unsubscribe removes and closes a subscriber's channel.
func (idx *Indexer) Unsubscribe(id string) {
	idx.subMu.Lock()
	defer idx.subMu.Unlock()
	if ch, ok := idx.subs[id]; ok {
		close(ch)
		delete(idx.subs, id)
	}
}

func (idx *Indexer) broadcast(d *diffengine.Diff) {
	idx.subMu.Lock()
	defer idx.subMu.Unlock()
	for id, ch := range idx.subs {
		select {
		case ch <- d:
		default:
			// Subscriber fell behind: close its channel so the Control
			// API can tell it to resync from a fresh snapshot instead
			// of silently queuing an unbounded backlog.
			close(ch)
			delete(idx.subs, id)
		}
	}
}

// Run drives ProcessBatch off batches until ctx is canceled or the
// channel closes.
func (idx *Indexer) Run(ctx context.Context, batches <-chan watch.Batch) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			if _, err := idx.ProcessBatch(ctx, batch); err != nil {
				idx.Logger.Error("indexer.batch.error", "err", err)
			}
		}
	}
}

// ProcessBatch runs one debounced batch through the full pipeline and
// returns the resulting diff (nil if nothing changed). It is the
// pipeline's only write path: Resolve/heuristic-link/commit all happen
// under idx.mu so two batches never interleave.
func (idx *Indexer) ProcessBatch(ctx context.Context, batch watch.Batch) (*diffengine.Diff, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	start := time.Now()
	correlationID := uuid.NewString()
	logger := idx.Logger.With("batch_id", correlationID, "files", len(batch.Events))

	var merr *multierror.Error
	mb := &graph.MutationBatch{}
	fileKinds := make(map[string]diffengine.FileChangeKind, len(batch.Events))

	// Tear down every touched file's previous contribution and commit that
	// teardown before staging the re-extraction, so stale nodes/edges never
	// survive alongside their replacement and a re-staged node whose ID is
	// unchanged is not removed again by the teardown.
	for _, ev := range batch.Events {
		if idx.retract(ev.Path, mb) && ev.Op == watch.OpRemove {
			fileKinds[ev.Path] = diffengine.FileRemoved
		}
	}
	retractRes := idx.Store.ApplyBatch(mb)
	mb = &graph.MutationBatch{}

	extracted := idx.extractAll(ctx, batch.Events, &merr)
	var functionSources []heuristic.FunctionSource
	var routeBindings []heuristic.RouteBinding
	for path, ef := range extracted {
		functionSources = append(functionSources, idx.stage(path, ef, mb)...)
		routeBindings = append(routeBindings, heuristic.FindRoutes(path, ef.src)...)
		fileKinds[path] = FileChangeKind(batch.Events, path)
		if idx.Metrics != nil {
			idx.Metrics.FilesIndexed.Inc()
		}
	}

	res := idx.Store.ApplyBatch(mb)
	for _, err := range res.Errors {
		merr = multierror.Append(merr, err)
	}

	resolved := resolve.New(idx.Table, idx.Store).Resolve()
	linkBatch := &graph.MutationBatch{}
	for _, e := range resolved.Edges {
		linkBatch.AddEdge(&graph.Edge{
			ID:         fingerprint.EdgeID(e.Kind, e.SourceID, e.TargetID, ""),
			Kind:       graph.EdgeKind(e.Kind),
			SourceID:   e.SourceID,
			TargetID:   e.TargetID,
			Provenance: graph.ProvenanceStructural,
			Confidence: 1.0,
		})
	}

	if len(functionSources) > 0 {
		envVars := map[string]string{}
		for _, n := range idx.Store.NodesByKind(graph.KindEnvVariable) {
			envVars[n.Name] = n.ID
		}
		for _, e := range heuristic.EnvironmentBindings(functionSources, envVars) {
			e.ID = fingerprint.EdgeID(string(e.Kind), e.SourceID, e.TargetID, e.Label)
			linkBatch.AddEdge(e)
		}

		configKeysBySuffix := idx.configKeySuffixes()
		for _, e := range heuristic.ConfigKeyBindings(functionSources, configKeysBySuffix) {
			e.ID = fingerprint.EdgeID(string(e.Kind), e.SourceID, e.TargetID, e.Label)
			linkBatch.AddEdge(e)
		}
	}

	if len(routeBindings) > 0 {
		handlersByName := idx.handlersBySimpleName()
		routeNodes, routeEdges := heuristic.RouteHandlerBindings(routeBindings, handlersByName, fingerprint.RouteID)
		for _, n := range routeNodes {
			linkBatch.AddNode(n)
		}
		for _, e := range routeEdges {
			e.ID = fingerprint.EdgeID(string(e.Kind), e.SourceID, e.TargetID, e.Label)
			linkBatch.AddEdge(e)
		}
	}

	if dockerServices := idx.Store.NodesByKind(graph.KindDockerService); len(dockerServices) > 0 {
		pathToNodeID := idx.filePathSuffixes()
		for _, e := range heuristic.DockerMountBindings(dockerServices, pathToNodeID) {
			e.ID = fingerprint.EdgeID(string(e.Kind), e.SourceID, e.TargetID, e.Label)
			linkBatch.AddEdge(e)
		}
	}

	if len(resolved.Unresolved) > 0 {
		dispatcher := idx.buildInterfaceDispatcher()
		for _, ref := range resolved.Unresolved {
			call, ok := idx.toUnresolvedCall(ref)
			if !ok {
				continue
			}
			for _, e := range dispatcher.Resolve(call) {
				e.ID = fingerprint.EdgeID(string(e.Kind), e.SourceID, e.TargetID, e.Label)
				linkBatch.AddEdge(e)
			}
		}
	}

	for _, amb := range resolved.Ambiguities {
		suggestions, err := idx.Bridge.Suggest(ctx, amb.Reference, nil, amb.Candidates)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		for _, s := range suggestions {
			if s.Confidence < idx.MinAIConfidence {
				continue
			}
			linkBatch.AddEdge(&graph.Edge{
				ID:         fingerprint.EdgeID("SemanticReference", amb.SourceNodeID, s.TargetNodeID, s.Rationale),
				Kind:       graph.EdgeSemanticReference,
				SourceID:   amb.SourceNodeID,
				TargetID:   s.TargetNodeID,
				Provenance: graph.ProvenanceAI,
				Confidence: s.Confidence,
				Label:      s.Rationale,
			})
		}
	}

	linkRes := idx.Store.ApplyBatch(linkBatch)
	for _, err := range linkRes.Errors {
		merr = multierror.Append(merr, err)
	}

	merged := mergeApplyResults(mergeApplyResults(retractRes, res), linkRes)
	diff := idx.Diffs.Build(merged, fileKinds)

	if idx.Metrics != nil {
		idx.Metrics.BatchesProcessed.Inc()
		idx.Metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}
	logger.Info("indexer.batch.committed",
		"sequence", diff.Sequence,
		"added_nodes", len(diff.AddedNodes),
		"added_edges", len(diff.AddedEdges),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if !diff.Empty() {
		idx.broadcast(diff)
	}
	return diff, merr.ErrorOrNil()
}

// FileChangeKind maps a watch event's Op onto the diff engine's kind
// vocabulary for the path it targets: the first event for path decides,
// OpCreate gives Created, OpRemove gives Removed, and any other Op gives
// Modified, including a Modify for a path that was not extracted before.
func FileChangeKind(events []watch.Event, path string) diffengine.FileChangeKind {
	for _, ev := range events {
		if ev.Path != path {
			continue
		}
		switch ev.Op {
		case watch.OpCreate:
			return diffengine.FileCreated
		case watch.OpRemove:
			return diffengine.FileRemoved
		default:
			return diffengine.FileModified
		}
	}
	return diffengine.FileModified
}

// retract removes every node/edge the previous extraction of path
// contributed, and deregisters its symbols from the table. It reports
// whether path had any prior tracked state, so a caller processing an
// OpRemove for a path this Indexer never extracted (e.g. a file created
// and removed again within one debounce window) can tell a genuine
// teardown apart from a no-op and avoid reporting a file change that
// never happened.
func (idx *Indexer) retract(path string, mb *graph.MutationBatch) bool {
	st, ok := idx.files[path]
	if !ok {
		return false
	}
	for i, id := range st.nodeIDs {
		mb.DeleteNode(id)
		if i < len(st.qnames) {
			idx.Table.Remove(st.qnames[i], id)
		}
	}
	delete(idx.files, path)
	return true
}

// extractAll runs the registered extractor for each touched, still-extant
// file. Below ten files this is sequential; above, it fans out across a
// worker pool capped at runtime.NumCPU, mirroring the teacher's
// parseFilesParallel threshold and jobs/results-channel shape.
func (idx *Indexer) extractAll(ctx context.Context, events []watch.Event, merr **multierror.Error) map[string]extractedFile {
	var toExtract []string
	for _, ev := range events {
		if ev.Op != watch.OpRemove {
			toExtract = append(toExtract, ev.Path)
		}
	}
	if len(toExtract) == 0 {
		return nil
	}

	type job struct {
		path string
		res  extract.Result
		src  []byte
		err  error
	}

	run := func(path string) job {
		src, err := os.ReadFile(path)
		if err != nil {
			return job{path: path, err: err}
		}
		ext, ok := idx.Registry.For(filepath.Ext(path))
		if !ok {
			if configextract.Recognized(path) {
				res, recognized, cerr := configextract.Detect(path, src)
				if cerr != nil {
					return job{path: path, err: cerr}
				}
				if !recognized {
					return job{path: path, err: nil}
				}
				return job{path: path, res: res, src: src}
			}
			return job{path: path, err: nil} // unsupported extension: silently skipped, not an error
		}
		var priorTree *sitter.Tree
		if prior, ok := idx.Cache.Get(path); ok {
			priorTree = prior.Tree
		}
		newTree, res, err := ext.Extract(path, src, priorTree)
		if err != nil {
			return job{path: path, err: err}
		}
		idx.Cache.Put(path, time.Now(), newTree, src)
		return job{path: path, res: res, src: src}
	}

	out := make(map[string]extractedFile, len(toExtract))
	if len(toExtract) < 10 {
		for _, p := range toExtract {
			select {
			case <-ctx.Done():
				return out
			default:
			}
			j := run(p)
			if j.err != nil {
				*merr = multierror.Append(*merr, j.err)
				if idx.Metrics != nil {
					idx.Metrics.FileErrors.Inc()
				}
				continue
			}
			if j.res.Symbols == nil && j.res.PackageName == "" && j.src == nil {
				continue // unsupported extension
			}
			out[j.path] = extractedFile{res: j.res, src: j.src}
		}
		return out
	}

	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	jobs := make(chan string, len(toExtract))
	results := make(chan job, len(toExtract))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				results <- run(p)
			}
		}()
	}
	for _, p := range toExtract {
		jobs <- p
	}
	close(jobs)
	go func() { wg.Wait(); close(results) }()

	var mu sync.Mutex
	for j := range results {
		if j.err != nil {
			mu.Lock()
			*merr = multierror.Append(*merr, j.err)
			mu.Unlock()
			if idx.Metrics != nil {
				idx.Metrics.FileErrors.Inc()
			}
			continue
		}
		if j.res.Symbols == nil && j.res.PackageName == "" && j.src == nil {
			continue
		}
		out[j.path] = extractedFile{res: j.res, src: j.src}
	}
	return out
}

// extractedFile pairs one file's extraction result with the source bytes
// it was produced from, so later stages (symbol-span slicing for the
// heuristic linker's text scans) don't need to re-read the file.
type extractedFile struct {
	res extract.Result
	src []byte
}

// stage turns one file's extraction result into staged node/edge upserts,
// registers its symbols in the table for cross-file resolution, and
// returns the FunctionSource records the heuristic linker's text-scanning
// patterns need. It records the new fileState so a later retract can
// tear this extraction back out.
func (idx *Indexer) stage(path string, ef extractedFile, mb *graph.MutationBatch) []heuristic.FunctionSource {
	idx.versions[path]++
	st := &fileState{version: idx.versions[path]}

	fileID := fingerprint.NodeID(path, path, 0, len(ef.src))
	mb.AddNode(&graph.Node{
		ID:          fileID,
		Kind:        graph.KindFile,
		Name:        filepath.Base(path),
		FilePath:    path,
		IsContainer: true,
		LineCount:   countLines(ef.src),
	})
	st.nodeIDs = append(st.nodeIDs, fileID)
	if idx.RootNodeID != "" {
		mb.AddEdge(&graph.Edge{
			ID:       fingerprint.EdgeID("Contains", idx.RootNodeID, fileID, ""),
			Kind:     graph.EdgeContains,
			SourceID: idx.RootNodeID,
			TargetID: fileID,
			FilePath: path,
		})
	}

	qnToID := make(map[string]string, len(ef.res.Symbols))
	hasParentEdge := make(map[string]bool, len(ef.res.Symbols))
	for _, e := range ef.res.IntraEdges {
		if e.Kind == "Contains" {
			hasParentEdge[e.ToQualified] = true
		}
	}

	var functionSources []heuristic.FunctionSource
	for _, sym := range ef.res.Symbols {
		nodeID := fingerprint.NodeID(path, sym.QualifiedName, sym.StartByte, sym.EndByte)
		qnToID[sym.QualifiedName] = nodeID
		mb.AddNode(&graph.Node{
			ID:            nodeID,
			Kind:          graph.NodeKind(sym.Kind),
			Name:          sym.Name,
			QualifiedName: sym.QualifiedName,
			FilePath:      path,
			Span: graph.Span{
				StartByte: sym.StartByte, EndByte: sym.EndByte,
				StartLine: sym.StartLine, EndLine: sym.EndLine,
			},
			Metadata: sym.Metadata,
		})
		st.nodeIDs = append(st.nodeIDs, nodeID)
		st.qnames = append(st.qnames, sym.QualifiedName)
		idx.Table.Put(sym.QualifiedName, symtab.Entry{NodeID: nodeID, FilePath: path, Kind: sym.Kind, Package: ef.res.PackageName})

		if !hasParentEdge[sym.QualifiedName] {
			mb.AddEdge(&graph.Edge{
				ID:       fingerprint.EdgeID("Contains", fileID, nodeID, ""),
				Kind:     graph.EdgeContains,
				SourceID: fileID,
				TargetID: nodeID,
				FilePath: path,
			})
		}

		if (sym.Kind == "Function" || sym.Kind == "Method") && sym.EndByte <= len(ef.src) && sym.StartByte >= 0 {
			functionSources = append(functionSources, heuristic.FunctionSource{
				NodeID: nodeID,
				Body:   ef.src[sym.StartByte:sym.EndByte],
			})
		}
	}

	for _, e := range ef.res.IntraEdges {
		fromID, fromOK := qnToID[e.FromQualified]
		toID, toOK := qnToID[e.ToQualified]
		if !fromOK || !toOK {
			continue
		}
		mb.AddEdge(&graph.Edge{
			ID:         fingerprint.EdgeID(e.Kind, fromID, toID, itoa(e.Line)),
			Kind:       graph.EdgeKind(e.Kind),
			SourceID:   fromID,
			TargetID:   toID,
			Provenance: graph.ProvenanceStructural,
			Confidence: 1.0,
			FilePath:   path,
			Line:       e.Line,
		})
	}

	for _, ref := range ef.res.UnresolvedRefs {
		sourceID, ok := qnToID[ref.FromQualified]
		if !ok {
			continue
		}
		idx.Table.Enqueue(symtab.PendingReference{
			SourceNodeID:  sourceID,
			RefText:       ref.RefText,
			EdgeKind:      ref.EdgeKind,
			FilePath:      path,
			Line:          ref.Line,
			ScopeHints:    ref.ScopeHints,
			ExpectedKinds: ref.ExpectedKinds,
			FromPackage:   ef.res.PackageName,
		})
	}

	idx.files[path] = st
	return functionSources
}

// configKeySuffixes indexes every live ConfigKey node by its dotted path
// relative to its owning file, e.g. "database.yaml.database.host" ->
// "database.host", so ConfigKeyBindings can match a function body's
// "config.Get(\"database.host\")"-shaped access against it.
func (idx *Indexer) configKeySuffixes() map[string][]string {
	out := map[string][]string{}
	for _, n := range idx.Store.NodesByKind(graph.KindConfigKey) {
		prefix := filepath.Base(n.FilePath) + "."
		dotted := strings.TrimPrefix(n.QualifiedName, prefix)
		out[dotted] = append(out[dotted], n.ID)
	}
	return out
}

// handlersBySimpleName indexes every live Function and Method node by its
// bare name (a Method's owning type is dropped, since a route registration
// call site names only the handler, never its receiver) for
// RouteHandlerBindings to match against.
func (idx *Indexer) handlersBySimpleName() map[string]string {
	out := map[string]string{}
	add := func(n *graph.Node) {
		name := n.Name
		if dot := strings.LastIndex(name, "."); dot >= 0 {
			name = name[dot+1:]
		}
		out[name] = n.ID
	}
	for _, n := range idx.Store.NodesByKind(graph.KindFunction) {
		add(n)
	}
	for _, n := range idx.Store.NodesByKind(graph.KindMethod) {
		add(n)
	}
	return out
}

// filePathSuffixes indexes every live File node by each "/"-delimited
// suffix of its path, so a compose file's host-side volume path (typically
// relative and possibly abbreviated) can still find the file it mounts.
// The first file claims a given suffix; a later, shorter path sharing it is
// a weaker match and is dropped.
func (idx *Indexer) filePathSuffixes() map[string]string {
	out := map[string]string{}
	for _, n := range idx.Store.NodesByKind(graph.KindFile) {
		segments := strings.Split(filepath.ToSlash(n.FilePath), "/")
		for i := range segments {
			suffix := strings.Join(segments[i:], "/")
			if _, exists := out[suffix]; !exists {
				out[suffix] = n.ID
			}
		}
	}
	return out
}

// buildInterfaceDispatcher assembles the struct-field and method-table
// lookups the heuristic interface dispatcher needs from currently live
// Field and Method nodes. Implementers is left empty: no extractor records
// which concrete types satisfy which interface, so dispatch falls through
// to the field/parameter's declared type alone.
func (idx *Indexer) buildInterfaceDispatcher() heuristic.InterfaceDispatcher {
	fieldTypes := map[string]map[string]string{}
	for _, n := range idx.Store.NodesByKind(graph.KindField) {
		owner := n.Metadata["owner"]
		if sep := strings.LastIndex(owner, "::"); sep >= 0 {
			owner = owner[sep+2:]
		}
		if fieldTypes[owner] == nil {
			fieldTypes[owner] = map[string]string{}
		}
		fieldTypes[owner][n.Name] = n.Metadata["type"]
	}

	methodNodeID := map[string]string{}
	for _, n := range idx.Store.NodesByKind(graph.KindMethod) {
		methodNodeID[n.Name] = n.ID
	}

	return heuristic.InterfaceDispatcher{
		FieldTypes:   fieldTypes,
		Implementers: map[string][]string{},
		MethodNodeID: methodNodeID,
	}
}

// toUnresolvedCall adapts a fully-unresolved pending reference into the
// shape the interface dispatcher expects, pulling the caller's name and
// signature off its already-committed graph node. It reports ok=false if
// that node no longer exists (e.g. retracted by a concurrent teardown).
func (idx *Indexer) toUnresolvedCall(ref symtab.PendingReference) (heuristic.UnresolvedCall, bool) {
	caller := idx.Store.Node(ref.SourceNodeID)
	if caller == nil {
		return heuristic.UnresolvedCall{}, false
	}
	return heuristic.UnresolvedCall{
		CallerNodeID:    ref.SourceNodeID,
		CallerName:      caller.Name,
		CallerSignature: caller.Metadata["signature"],
		CalleeRef:       ref.RefText,
		FilePath:        ref.FilePath,
		Line:            ref.Line,
	}, true
}

func countLines(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	n := 1
	for _, b := range src {
		if b == '\n' {
			n++
		}
	}
	return n
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// mergeApplyResults combines two ApplyResults that were committed
// sequentially within the same batch (structural, then heuristic/AI) into
// one for the diff engine, which has no notion of "sub-commits".
func mergeApplyResults(a, b *graph.ApplyResult) *graph.ApplyResult {
	return &graph.ApplyResult{
		AddedNodes:     append(append([]*graph.Node{}, a.AddedNodes...), b.AddedNodes...),
		RemovedNodeIDs: append(append([]string{}, a.RemovedNodeIDs...), b.RemovedNodeIDs...),
		ModifiedNodes:  append(append([]graph.ModifiedNode{}, a.ModifiedNodes...), b.ModifiedNodes...),
		AddedEdges:     append(append([]*graph.Edge{}, a.AddedEdges...), b.AddedEdges...),
		RemovedEdgeIDs: append(append([]string{}, a.RemovedEdgeIDs...), b.RemovedEdgeIDs...),
	}
}
