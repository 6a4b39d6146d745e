package auth

import "sort"

// EffectivePermissions folds the capability grants of a role set into the
// allowed capability set, applying deny-overrides-allow: a single DENY for a
// capability anywhere in the set removes it, regardless of how many ALLOWs
// exist or in what order the grants arrive.
func EffectivePermissions(grants []Grant) map[string]struct{} {
	allowed := make(map[string]struct{})
	denied := make(map[string]struct{})
	for _, g := range grants {
		if g.Capability == "" {
			continue
		}
		switch g.Effect {
		case EffectAllow:
			allowed[g.Capability] = struct{}{}
		case EffectDeny:
			denied[g.Capability] = struct{}{}
		}
	}
	for key := range denied {
		delete(allowed, key)
	}
	return allowed
}

func sortedCapabilities(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func capabilitySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		set[k] = struct{}{}
	}
	return set
}
