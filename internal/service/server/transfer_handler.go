package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adrianov/diskadmit/internal/domain"
	"github.com/adrianov/diskadmit/internal/port"
	"github.com/adrianov/diskadmit/internal/registry"
	"github.com/adrianov/diskadmit/internal/service/admission"
)

// TransferHandler serves the transfer endpoints
type TransferHandler struct {
	registry    *registry.Registry
	coordinator *admission.Coordinator
	engine      port.Engine
	logger      *zap.Logger
}

// NewTransferHandler creates a new TransferHandler
func NewTransferHandler(reg *registry.Registry, coordinator *admission.Coordinator, eng port.Engine, logger *zap.Logger) *TransferHandler {
	return &TransferHandler{
		registry:    reg,
		coordinator: coordinator,
		engine:      eng,
		logger:      logger,
	}
}

// transferView is the JSON shape of a transfer
type transferView struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	DownloadDir        string    `json:"download_dir"`
	GroupID            int       `json:"group_id"`
	Status             string    `json:"status"`
	SizeWhenDone       uint64    `json:"size_when_done"`
	SizeLeft           uint64    `json:"size_left"`
	PausedForDiskSpace bool      `json:"paused_for_disk_space"`
	DiskSpaceNeeded    uint64    `json:"disk_space_needed"`
	DiskSpaceAvailable uint64    `json:"disk_space_available"`
	DiskSpaceTotal     uint64    `json:"disk_space_total"`
	LastProbeAt        time.Time `json:"last_probe_at,omitempty"`
	AddedAt            time.Time `json:"added_at"`
}

func toView(t domain.Transfer) transferView {
	return transferView{
		ID:                 t.ID,
		Name:               t.Name,
		DownloadDir:        t.DownloadDir,
		GroupID:            t.GroupID,
		Status:             t.Status.String(),
		SizeWhenDone:       t.SizeWhenDone,
		SizeLeft:           t.SizeLeft,
		PausedForDiskSpace: t.PausedForDiskSpace,
		DiskSpaceNeeded:    t.DiskSpaceNeeded,
		DiskSpaceAvailable: t.DiskSpaceAvailable,
		DiskSpaceTotal:     t.DiskSpaceTotal,
		LastProbeAt:        t.LastProbeAt,
		AddedAt:            t.AddedAt,
	}
}

// HandleList returns all transfers
func (h *TransferHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	snapshot := h.registry.Snapshot()
	views := make([]transferView, len(snapshot))
	for i, t := range snapshot {
		views[i] = toView(t)
	}
	writeJSON(w, http.StatusOK, views)
}

// addRequest is the payload for adding a transfer
type addRequest struct {
	Name         string `json:"name"`
	DownloadDir  string `json:"download_dir"`
	GroupID      *int   `json:"group_id"`
	SizeWhenDone uint64 `json:"size_when_done"`
	SizeLeft     uint64 `json:"size_left"`
}

// HandleAdd registers a new transfer. The transfer enters paused for disk
// space and goes straight through an admission check, which starts it if
// its volume has room.
func (h *TransferHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.DownloadDir == "" {
		writeError(w, http.StatusBadRequest, "name and download_dir are required")
		return
	}
	if req.SizeLeft > req.SizeWhenDone {
		writeError(w, http.StatusBadRequest, "size_left cannot exceed size_when_done")
		return
	}

	groupID := domain.NoGroup
	if req.GroupID != nil {
		groupID = *req.GroupID
	}

	t := &domain.Transfer{
		ID:                 uuid.NewString(),
		Name:               req.Name,
		DownloadDir:        req.DownloadDir,
		GroupID:            groupID,
		SizeWhenDone:       req.SizeWhenDone,
		SizeLeft:           req.SizeLeft,
		AddedAt:            time.Now(),
		PausedForDiskSpace: true,
	}

	if err := h.registry.Add(t); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	h.logger.Info("transfer added",
		zap.String("transfer", t.ID),
		zap.String("name", t.Name),
		zap.Uint64("size_when_done", t.SizeWhenDone))

	if err := h.coordinator.CheckDiskSpace(t.ID); err != nil && !errors.Is(err, domain.ErrCheckInProgress) {
		h.logger.Warn("admission check failed for new transfer", zap.String("transfer", t.ID), zap.Error(err))
	}

	writeJSON(w, http.StatusAccepted, toView(*t))
}

// HandleResume resumes a transfer on explicit user request, bypassing the
// probe throttle.
func (h *TransferHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := h.coordinator.ResumeRequest(id, true)
	switch {
	case errors.Is(err, domain.ErrTransferNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrCheckInProgress):
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "check already in progress"})
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

// volumeView aggregates disk figures for one volume
type volumeView struct {
	Volume     domain.VolumeID `json:"volume"`
	Transfers  int             `json:"transfers"`
	UsageBytes uint64          `json:"usage_bytes"`
	NeedBytes  uint64          `json:"need_bytes"`
}

// HandleVolumes returns per-volume usage and outstanding-download sums for
// every volume a probed transfer lives on.
func (h *TransferHandler) HandleVolumes(w http.ResponseWriter, r *http.Request) {
	counts := make(map[domain.VolumeID]int)
	for _, t := range h.registry.Snapshot() {
		counts[t.Volume]++
	}

	views := make([]volumeView, 0, len(counts))
	for vol, n := range counts {
		views = append(views, volumeView{
			Volume:     vol,
			Transfers:  n,
			UsageBytes: h.registry.TotalDiskUsage(vol),
			NeedBytes:  h.registry.TotalDiskNeeded(vol, domain.NoGroup, domain.NoGroup),
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Volume < views[j].Volume })
	writeJSON(w, http.StatusOK, views)
}

// HandleRemove removes a transfer and its data
func (h *TransferHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.registry.Get(id); !ok {
		writeError(w, http.StatusNotFound, domain.ErrTransferNotFound.Error())
		return
	}

	deleteData := r.URL.Query().Get("delete_data") != "false"
	if err := h.engine.RemoveTransfers(r.Context(), []string{id}, deleteData); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
