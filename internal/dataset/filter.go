package dataset

// FilterObservations returns the rows whose model and device are both in the
// given selections. An empty selection on either axis selects nothing: the
// result has zero rows. Rows without a device never match a device
// selection, so they only appear in unfiltered row-level views. Pure
// function; the underlying observations are shared, not copied.
func FilterObservations(obs []Observation, models, devices []string) []Observation {
	modelSet := toSet(models)
	deviceSet := toSet(devices)

	var out []Observation
	for _, o := range obs {
		if _, ok := modelSet[o.ModelName]; !ok {
			continue
		}
		if o.Device == nil {
			continue
		}
		if _, ok := deviceSet[*o.Device]; !ok {
			continue
		}
		out = append(out, o)
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
