// Package license owns usage grants on IP assets: exclusivity checks,
// the approval workflow, versioned amendments, renewals and the sweeps that
// expire or announce ending licenses.
package license
