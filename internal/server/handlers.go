package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/caas/audit-substrate/internal/analytics"
	"github.com/caas/audit-substrate/internal/compliance"
)

// Handler wires HTTP requests onto the five CaaS components plus the
// analytics summary, the same "one struct of collaborators, one method per
// route" shape the teacher's Handler used for audit/policy/privacy.
type Handler struct {
	Interceptor  *compliance.Interceptor
	Compiler     *compliance.Compiler
	Ledger       *compliance.Ledger
	Pipeline     *compliance.Pipeline
	Verifier     *compliance.Verifier
	Broadcaster  *Broadcaster
	Metrics      *Metrics
	KAnonymity   int
	DPEpsilon    float64
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// IngestEvent implements CEI's HTTP surface: validate, intercept, and run
// the event through AAP so a single POST both records completeness and
// produces an audit record.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload("invalid body"))
		return
	}

	var event compliance.ComplianceEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload("invalid json"))
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	accepted, err := h.Interceptor.Intercept(event)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload(err.Error()))
		return
	}
	if h.Metrics != nil {
		h.Metrics.EventsIntercepted.Inc()
	}

	var criticality compliance.Criticality
	if c := r.URL.Query().Get("criticality"); c != "" {
		criticality = compliance.Criticality(c)
	}
	var override compliance.Fidelity
	if f := r.URL.Query().Get("fidelity"); f != "" {
		override = compliance.Fidelity(f)
	}

	var policy *compliance.CanonicalPolicy
	if policyID := r.URL.Query().Get("policy_id"); policyID != "" {
		if cp, err := h.Compiler.Get(policyID); err == nil {
			policy = &cp
		}
	}

	processed, err := h.Pipeline.ProcessEvent(event, policy, criticality, override)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorPayload(err.Error()))
		return
	}
	if h.Metrics != nil {
		h.Metrics.RecordsAppended.Inc()
		h.Metrics.FidelitySelected.WithLabelValues(string(processed.Fidelity)).Inc()
	}
	if h.Broadcaster != nil {
		h.Broadcaster.Publish(processed)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":        accepted,
		"processed": processed,
	})
}

// CompilePolicy implements PAC's HTTP surface.
func (h *Handler) CompilePolicy(w http.ResponseWriter, r *http.Request) {
	var policy compliance.Policy
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&policy); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload("invalid json"))
		return
	}
	cp, err := h.Compiler.Compile(policy)
	if err != nil {
		writeCompilianceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "policy": cp})
}

func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "policyID")
	if version := r.URL.Query().Get("version"); version != "" {
		cp, err := h.Compiler.GetVersion(policyID, version)
		if err != nil {
			writeCompilianceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "policy": cp})
		return
	}
	cp, err := h.Compiler.Get(policyID)
	if err != nil {
		writeCompilianceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "policy": cp})
}

func (h *Handler) ListPolicyVersions(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "policyID")
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "versions": h.Compiler.Versions(policyID)})
}

// GetRecord implements CAL's per-record lookup.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.Ledger.Get(chi.URLParam(r, "recordID"))
	if err != nil {
		writeCompilianceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "record": record})
}

// VerifyChain implements CAL's integrity check over the whole ledger.
func (h *Handler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	ok := h.Ledger.VerifyChainIntegrity()
	status := http.StatusOK
	if !ok {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]interface{}{"ok": ok, "count": h.Ledger.Count()})
}

// BuildBundle implements ZCVI's four bundle-creation modes.
func (h *Handler) BuildBundle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type      string   `json:"type"`
		RecordID  string   `json:"record_id"`
		RecordIDs []string `json:"record_ids"`
		TenantID  string   `json:"tenant_id"`
		Limit     int      `json:"limit"`
		From      time.Time `json:"from"`
		To        time.Time `json:"to"`
		IncludeMerkleProof bool `json:"include_merkle_proof"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload("invalid json"))
		return
	}

	var bundle compliance.ProofBundle
	var err error
	switch compliance.BundleType(req.Type) {
	case compliance.BundleSingle:
		bundle, err = h.Verifier.CreateSingleRecordBundle(req.RecordID, req.IncludeMerkleProof)
	case compliance.BundleBatch:
		bundle, err = h.Verifier.CreateBatchBundle(req.RecordIDs)
	case compliance.BundleTimeRange:
		bundle, err = h.Verifier.CreateTimeRangeBundle(req.From, req.To, req.TenantID)
	case compliance.BundleTenant:
		bundle, err = h.Verifier.CreateTenantBundle(req.TenantID, req.Limit)
	default:
		writeJSON(w, http.StatusBadRequest, errorPayload("unknown bundle type"))
		return
	}
	if err != nil {
		writeCompilianceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "bundle": bundle})
}

// VerifyBundleHandler implements ZCVI's offline verification, accepting a bundle
// the caller may have received from a different process entirely.
func (h *Handler) VerifyBundleHandler(w http.ResponseWriter, r *http.Request) {
	var bundle compliance.ProofBundle
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&bundle); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload("invalid json"))
		return
	}
	result := compliance.VerifyBundle(bundle)
	if h.Metrics != nil {
		h.Metrics.BundlesVerified.WithLabelValues(strconv.FormatBool(result.Valid)).Inc()
	}
	status := http.StatusOK
	if !result.Valid {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]interface{}{"ok": result.Valid, "result": result})
}

// UsageSummary reports the bucket-mutation-count analytics for a tenant.
func (h *Handler) UsageSummary(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	windowHours, _ := strconv.Atoi(r.URL.Query().Get("window_hours"))
	if windowHours <= 0 || windowHours > 168 {
		windowHours = 24
	}
	k, _ := strconv.Atoi(r.URL.Query().Get("k"))
	if k <= 0 {
		k = h.KAnonymity
	}
	eps, _ := strconv.ParseFloat(r.URL.Query().Get("epsilon"), 64)
	if eps <= 0 {
		eps = h.DPEpsilon
	}
	seed, _ := strconv.ParseInt(r.URL.Query().Get("seed"), 10, 64)

	counts := analytics.BucketCountsForTenant(h.Ledger, tenantID, time.Duration(windowHours)*time.Hour, time.Now().UTC())
	summary := analytics.Summarize(tenantID, counts, k, eps, seed, windowHours)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "summary": summary})
}

func writeCompilianceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, compliance.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorPayload(err.Error()))
	case errors.Is(err, compliance.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorPayload(err.Error()))
	case errors.Is(err, compliance.ErrBatchSizeLocked):
		writeJSON(w, http.StatusConflict, errorPayload(err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, errorPayload(err.Error()))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func errorPayload(msg string) map[string]interface{} {
	return map[string]interface{}{"ok": false, "error": msg}
}
