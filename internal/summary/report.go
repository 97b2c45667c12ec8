package summary

import "complaintsync/internal/reconcile"

// FromSummary collects a run's failed outcomes into a report.
func FromSummary(s *reconcile.Summary) Report {
	rep := Report{
		Driver: s.Driver,
		RunID:  s.RunID,
		Total:  s.Total(),
		At:     s.Finished,
		Rows:   make([]Row, 0, len(s.Failures)),
	}
	for _, f := range s.Failures {
		row := Row{ID: f.ID, Class: f.Class.String()}
		if f.Err != nil {
			row.Error = f.Err.Error()
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep
}
