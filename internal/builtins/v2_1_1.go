package builtins

import "github.com/doml-verifier/mc/internal/requirement"

// v2_1_1Catalog is the built-in catalog for DOML v2.1.1. Schema-wise
// v2.1.1 is a patch release of v2.1 (same classes and associations), but
// it gets its own catalog function rather than reusing v2_1Catalog so
// that a future divergence in this version's semantics never requires
// clawing the two apart later — each version's list stands on its own,
// per the no-back-porting rule stated on For.
func v2_1_1Catalog() []requirement.Requirement {
	return []requirement.Requirement{
		vmHasInterface("infrastructure_VirtualMachine"),
		ifaceUniqueEndpoint("infrastructure_NetworkInterface"),
		allComponentsDeployed(),
		abstractInfraConcretized(),
		reachableNetworkChain([]string{
			"infrastructure_Container::hosts",
			"infrastructure_AutoScalingGroup::machineDefinition",
		}),
		securityGroupHasInterface(),
		saasOverHTTPSOnly(),
	}
}
