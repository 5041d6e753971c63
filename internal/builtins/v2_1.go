package builtins

import "github.com/doml-verifier/mc/internal/requirement"

// v2_1Catalog is the built-in catalog for DOML v2.1. SecurityGroup and
// SecurityGroupRule are new in this version, adding the two
// security-adjacent requirements on top of the v2.0 set.
func v2_1Catalog() []requirement.Requirement {
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
