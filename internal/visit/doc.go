// Package visit manages preventive-maintenance visits: the pre-visit
// preparation checklist, the on-site task list, and the SOP procedure
// library tasks reference.
//
// A visit moves through a fixed status ladder: planned → in_progress →
// complete → signed_off. Sign-off is supervisor work and is only valid on a
// complete visit.
package visit
