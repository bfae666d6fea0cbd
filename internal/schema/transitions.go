package schema

// CanAcceptOrReject reports whether a proposal in status s may transition
// to accepted or rejected. Terminal states are absorbing; only "open"
// accepts further transitions.
func CanAcceptOrReject(s ProposalStatus) bool {
	return s == ProposalOpen
}

// pluginTransitions enumerates every (from, to) pair the plugin lifecycle
// permits. Uninstall returns a plugin to "registered" rather than deleting
// its history, matching the cycle in the data model: registered ->
// installed -> enabled <-> disabled -> (uninstalled -> registered).
var pluginTransitions = map[LifecycleState]map[LifecycleState]bool{
	LifecycleRegistered: {LifecycleInstalled: true},
	LifecycleInstalled:  {LifecycleEnabled: true},
	LifecycleEnabled:    {LifecycleDisabled: true, LifecycleUninstalled: true},
	LifecycleDisabled:   {LifecycleEnabled: true, LifecycleUninstalled: true},
	LifecycleUninstalled: {LifecycleRegistered: true},
}

// CanTransitionPlugin reports whether a plugin may move from `from` to `to`.
func CanTransitionPlugin(from, to LifecycleState) bool {
	next, ok := pluginTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}
