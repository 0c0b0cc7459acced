package mpm

import (
	"strconv"

	"github.com/james-see/mei2perf/pkg/msm"
)

// ResolveTransitions sets TransitionTo of every continuous dynamics and tempo entry to the
// value of the next entry in the same map. Continuous entries without a successor become
// constant; their ids (or dates) are returned.
func (p *Performance) ResolveTransitions() []string {
	var constant []string
	for _, r := range p.Regions() {
		constant = append(constant, resolveDynamics(r.Dynamics)...)
		constant = append(constant, resolveTempo(r.Tempo)...)
	}
	return constant
}

func resolveDynamics(m *msm.Map[*Dynamics]) []string {
	var constant []string
	entries := m.Entries()
	for i, d := range entries {
		if !d.Continuous || d.TransitionTo != nil {
			continue
		}
		if i+1 < len(entries) {
			next := entries[i+1].Volume
			d.TransitionTo = &next
			continue
		}
		d.Continuous = false
		constant = append(constant, label(d.ID, d.Date))
	}
	return constant
}

func resolveTempo(m *msm.Map[*Tempo]) []string {
	var constant []string
	entries := m.Entries()
	for i, t := range entries {
		if !t.Continuous || t.TransitionTo != nil {
			continue
		}
		if i+1 < len(entries) {
			next := entries[i+1].Bpm
			t.TransitionTo = &next
			continue
		}
		t.Continuous = false
		constant = append(constant, label(t.ID, t.Date))
	}
	return constant
}

func label(id string, date float64) string {
	if id != "" {
		return id
	}
	return "date " + strconv.FormatFloat(date, 'f', -1, 64)
}
