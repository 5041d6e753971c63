package builtins

import "github.com/doml-verifier/mc/internal/requirement"

// v2_0Catalog is the built-in catalog for DOML v2.0. Container and
// AutoScalingGroup are new in this version, so "reachable network" now
// has to chase a component down through a hosting chain before it finds
// a ComputingNode with its own ifaces; there is still no SecurityGroup.
func v2_0Catalog() []requirement.Requirement {
	return []requirement.Requirement{
		vmHasInterface("infrastructure_VirtualMachine"),
		ifaceUniqueEndpoint("infrastructure_NetworkInterface"),
		allComponentsDeployed(),
		abstractInfraConcretized(),
		reachableNetworkChain([]string{
			"infrastructure_Container::hosts",
			"infrastructure_AutoScalingGroup::machineDefinition",
		}),
	}
}
