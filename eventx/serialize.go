package eventx

import (
	"encoding/json"
)

// CallbackInfo is the serializable view of a pending callback.
type CallbackInfo struct {
	ID              string `json:"id"`
	Key             string `json:"key"`
	Priority        int    `json:"priority"`
	IgnoreCancelled bool   `json:"ignore_cancelled"`
	HasLiveness     bool   `json:"has_liveness"`
	Static          bool   `json:"static"`
}

// HolderInfo is the serializable view of a holder.
type HolderInfo struct {
	Event       string         `json:"event"`
	Scope       string         `json:"scope"`
	Parent      string         `json:"parent,omitempty"`
	Abstract    bool           `json:"abstract"`
	Cancellable bool           `json:"cancellable"`
	Empty       bool           `json:"empty"`
	Baked       bool           `json:"baked"`
	Callbacks   []CallbackInfo `json:"callbacks"`
}

// Describe captures the current state of h. It never rebuilds the table.
func Describe(h *Holder) HolderInfo {
	info := HolderInfo{
		Event:       h.Name(),
		Scope:       h.regs.name(),
		Abstract:    h.IsAbstract(),
		Cancellable: h.IsCancellable(),
		Empty:       h.IsEmpty(),
	}
	if h.parent != nil {
		info.Parent = h.parent.Name()
	}
	if b := h.baked.Load(); b != nil && b.generation == h.rt.generation.Load() {
		info.Baked = true
	}

	pending := h.Callbacks()
	info.Callbacks = make([]CallbackInfo, 0, len(pending))
	for _, cb := range pending {
		info.Callbacks = append(info.Callbacks, CallbackInfo{
			ID:              cb.id.String(),
			Key:             cb.key,
			Priority:        cb.priority,
			IgnoreCancelled: cb.ignoreCancelled,
			HasLiveness:     cb.alive != nil,
			Static:          cb.target == nil,
		})
	}
	return info
}

// Snapshot describes every holder of scope; nil means the default scope.
func (rt *Runtime) Snapshot(scope Scope) ([]HolderInfo, error) {
	var out []HolderInfo
	err := rt.ForEachHolder(scope, func(h *Holder) {
		out = append(out, Describe(h))
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []HolderInfo{}
	}
	return out, nil
}

// ToJSON serializes the holders of scope.
func (rt *Runtime) ToJSON(scope Scope) ([]byte, error) {
	infos, err := rt.Snapshot(scope)
	if err != nil {
		return nil, err
	}
	return json.Marshal(infos)
}
