package submodel

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/edbonneville/smcfcs/data"
)

// competingModel is a set of cause-specific proportional hazards
// models.  The model for cause k treats events of the other causes as
// censored.  A subject's likelihood is the product of its contributions
// to the cause-specific models.
type competingModel struct {
	spec   *Spec
	causes []*coxModel

	params []float64
	names  []string
}

func newCompetingModel(spec *Spec) *competingModel {

	m := &competingModel{spec: spec}
	for _, terms := range spec.CauseTerms {
		cs := &Spec{
			Type:   Cox,
			Time:   spec.Time,
			Status: spec.Status,
			Terms:  terms,
		}
		m.causes = append(m.causes, newCoxModel(cs))
	}

	return m
}

// setEvents sets the event indicator of each cause-specific model.
func (m *competingModel) setEvents(f *data.Frame) {

	status := f.Values(m.spec.Status)
	for k, cm := range m.causes {
		ind := make([]float64, len(status))
		for i, d := range status {
			if d == float64(k+1) {
				ind[i] = 1
			}
		}
		cm.event = ind
	}
}

func (m *competingModel) Fit(f *data.Frame) error {

	if m.causes[0].event == nil {
		m.setEvents(f)
	}

	var params []float64
	var names []string
	for k, cm := range m.causes {
		if err := cm.Fit(f); err != nil {
			return fmt.Errorf("cause %d: %w", k+1, err)
		}
		params = append(params, cm.Coeff()...)
		for _, na := range cm.Names() {
			names = append(names, fmt.Sprintf("%d:%s", k+1, na))
		}
	}
	m.params = params
	m.names = names

	return nil
}

func (m *competingModel) Draw(rng *rand.Rand) error {
	for k, cm := range m.causes {
		if err := cm.Draw(rng); err != nil {
			return fmt.Errorf("cause %d: %w", k+1, err)
		}
	}
	return nil
}

func (m *competingModel) Coeff() []float64 {
	return m.params
}

func (m *competingModel) Names() []string {
	return m.names
}

func (m *competingModel) Weight(f *data.Frame, i int) float64 {
	w := 1.0
	for _, cm := range m.causes {
		w *= cm.Weight(f, i)
	}
	return w
}
