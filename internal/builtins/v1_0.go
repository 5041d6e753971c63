package builtins

import "github.com/doml-verifier/mc/internal/requirement"

// v1Catalog is the built-in catalog for DOML v1.0. Version 1.0 has no
// Container or AutoScalingGroup, so a ComputingNode's own ifaces
// association is the only hop "reachable network" ever needs to walk, and
// there is no SecurityGroup to require an interface association from.
func v1Catalog() []requirement.Requirement {
	return []requirement.Requirement{
		vmHasInterface("infrastructure_VirtualMachine"),
		ifaceUniqueEndpoint("infrastructure_NetworkInterface"),
		allComponentsDeployed(),
		abstractInfraConcretized(),
		reachableNetworkChain(nil),
	}
}
