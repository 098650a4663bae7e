package entities

type Action string

const (
	ActionSubmit    Action = "submit"
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
	ActionSuspend   Action = "suspend"
	ActionReinstate Action = "reinstate"
	ActionTerminate Action = "terminate"
)

type transition struct {
	from []LicenseStatus
	to   LicenseStatus
}

var actions = map[Action]transition{
	ActionSubmit:    {from: []LicenseStatus{LicenseStatusDraft}, to: LicenseStatusPendingApproval},
	ActionApprove:   {from: []LicenseStatus{LicenseStatusPendingApproval}, to: LicenseStatusActive},
	ActionReject:    {from: []LicenseStatus{LicenseStatusPendingApproval}, to: LicenseStatusDraft},
	ActionSuspend:   {from: []LicenseStatus{LicenseStatusActive}, to: LicenseStatusSuspended},
	ActionReinstate: {from: []LicenseStatus{LicenseStatusSuspended}, to: LicenseStatusActive},
	ActionTerminate: {from: []LicenseStatus{LicenseStatusActive, LicenseStatusSuspended}, to: LicenseStatusTerminated},
}

// Target returns the status an action leads to from the given status.
func (a Action) Target(from LicenseStatus) (LicenseStatus, bool) {
	rule, ok := actions[a]
	if !ok {
		return "", false
	}
	for _, status := range rule.from {
		if status == from {
			return rule.to, true
		}
	}
	return "", false
}

func (a Action) Valid() bool {
	_, ok := actions[a]
	return ok
}
