package builtins

import (
	"fmt"

	"github.com/doml-verifier/mc/internal/encoding"
	"github.com/doml-verifier/mc/internal/requirement"
)

// cl/ml are short aliases for the two Mangle literal-spelling helpers
// every catalog entry needs, purely to keep the rule-text templates below
// legible.
func cl(qualifiedClass string) string { return encoding.ClassLiteral(qualifiedClass) }
func ml(mangled string) string        { return encoding.MemberLiteral(mangled) }

// vmHasInterface is grounded in spec.md §4.5's first bullet and §8
// scenario S1: a VirtualMachine with no NetworkInterface reachable
// through the inherited ComputingNode::ifaces association is a
// violation.
func vmHasInterface(vmClass string) requirement.Requirement {
	rule := fmt.Sprintf(`Decl vm_no_iface(Vm).
vm_no_iface(Vm) :- elem_class(Vm, %s), !has_iface(Vm).
Decl has_iface(Vm).
has_iface(Vm) :- assoc(Vm, %s, _).
`, cl(vmClass), ml("infrastructure_ComputingNode::ifaces"))
	return requirement.Requirement{
		ID:          "vm-has-interface",
		Description: "every virtual machine has at least one network interface",
		Source:      requirement.SourceBuiltin,
		Flipped:     true,
		RuleText:    rule,
		QueryText:   "vm_no_iface(Vm)",
		Template:    "{Vm} has no network interface",
	}
}

// ifaceUniqueEndpoint is grounded in §8 scenario S2: two distinct
// NetworkInterfaces must never share the same endPoint value.
func ifaceUniqueEndpoint(ifaceClass string) requirement.Requirement {
	rule := fmt.Sprintf(`Decl dup_endpoint(A, B).
dup_endpoint(A, B) :- elem_class(A, %[1]s), elem_class(B, %[1]s), A != B, attr(A, %[2]s, Ep), attr(B, %[2]s, Ep).
`, cl(ifaceClass), ml("infrastructure_NetworkInterface::endPoint"))
	return requirement.Requirement{
		ID:          "iface-unique-endpoint",
		Description: "no two network interfaces share the same endpoint",
		Source:      requirement.SourceBuiltin,
		Flipped:     true,
		RuleText:    rule,
		QueryText:   "dup_endpoint(A, B)",
		Template:    "{A} and {B} share the same network endpoint",
	}
}

// allComponentsDeployed is grounded in §8 scenario S3: a SoftwareComponent
// with no Deployment whose component association names it is a
// violation. Deployment carries no declared inverse, so the search walks
// every Deployment element looking for one pointing back at the
// component.
func allComponentsDeployed() requirement.Requirement {
	rule := fmt.Sprintf(`Decl not_deployed(C).
not_deployed(C) :- elem_class(C, %s), !is_deployed(C).
Decl is_deployed(C).
is_deployed(C) :- elem_class(D, %s), assoc(D, %s, C).
`, cl("application_SoftwareComponent"), cl("commons_Deployment"), ml("commons_Deployment::component"))
	return requirement.Requirement{
		ID:          "all-components-deployed",
		Description: "every software component is targeted by some deployment",
		Source:      requirement.SourceBuiltin,
		Flipped:     true,
		RuleText:    rule,
		QueryText:   "not_deployed(C)",
		Template:    "{C} is not deployed",
	}
}

// abstractInfraConcretized is grounded in spec.md §4.5's "every abstract
// infrastructure element is mapped in the active concretization and vice
// versa" bullet. ConcreteInfrastructureElement::concretizes already
// carries multiplicity 1 on the concrete side (the IM does not enforce
// it; the optional consistency requirements do); the genuinely checkable
// direction is the reverse one the metamodel leaves unconstrained: every
// abstract element must be named by at least one concrete counterpart.
func abstractInfraConcretized() requirement.Requirement {
	rule := fmt.Sprintf(`Decl not_concretized(E).
not_concretized(E) :- elem_class(E, %s), !is_concretized(E).
Decl is_concretized(E).
is_concretized(E) :- elem_class(C, %s), assoc(C, %s, E).
`, cl("infrastructure_InfrastructureElement"), cl("concrete_ConcreteInfrastructureElement"), ml("concrete_ConcreteInfrastructureElement::concretizes"))
	return requirement.Requirement{
		ID:          "abstract-infra-concretized",
		Description: "every abstract infrastructure element has a concrete mapping",
		Source:      requirement.SourceBuiltin,
		Flipped:     true,
		RuleText:    rule,
		QueryText:   "not_concretized(E)",
		Template:    "{E} has no concrete mapping",
	}
}

// reachableNetworkChain builds the "reaches" recursive predicate linking
// a ComputingNode to every NetworkInterface it or anything it hosts
// carries, then the shared-network check over consumer/exposer pairs
// (spec.md §4.5's "reachable network via some chain of
// ifaces/hosts/machineDefinition" bullet). hostingAssocs names the
// additional one-hop associations this version's schema offers beyond
// the always-present ComputingNode::ifaces edge — empty for v1.0, which
// has neither Container nor AutoScalingGroup.
func reachableNetworkChain(hostingAssocs []string) requirement.Requirement {
	reaches := fmt.Sprintf("reaches(Node, Iface) :- assoc(Node, %s, Iface).\n", ml("infrastructure_ComputingNode::ifaces"))
	for _, a := range hostingAssocs {
		reaches += fmt.Sprintf("reaches(Node, Iface) :- assoc(Node, %s, Inner), reaches(Inner, Iface).\n", ml(a))
	}

	rule := fmt.Sprintf(`Decl reaches(Node, Iface).
%s
Decl shares_network(NodeA, NodeB).
shares_network(NodeA, NodeB) :- reaches(NodeA, IfA), assoc(IfA, %[2]s, Net), reaches(NodeB, IfB), assoc(IfB, %[2]s, Net), IfA != IfB.

Decl unreachable_pair(Comp, Exp).
unreachable_pair(Comp, Exp) :-
  elem_class(Comp, %[3]s), elem_class(Exp, %[3]s), Comp != Exp,
  assoc(Comp, %[4]s, I), assoc(Exp, %[5]s, I),
  elem_class(NodeA, %[6]s), assoc(DA, %[7]s, Comp), assoc(DA, %[8]s, NodeA),
  elem_class(NodeB, %[6]s), assoc(DB, %[7]s, Exp), assoc(DB, %[8]s, NodeB),
  !shares_network(NodeA, NodeB).
`, reaches, ml("infrastructure_NetworkInterface::belongsTo"),
		cl("application_SoftwareComponent"),
		ml("application_SoftwareComponent::consumedInterfaces"), ml("application_SoftwareComponent::exposedInterfaces"),
		cl("infrastructure_ComputingNode"), ml("commons_Deployment::component"), ml("commons_Deployment::node"))

	return requirement.Requirement{
		ID:          "consumer-exposer-reachable-network",
		Description: "a component consuming an interface another component exposes must share a reachable network with it",
		Source:      requirement.SourceBuiltin,
		Flipped:     true,
		RuleText:    rule,
		QueryText:   "unreachable_pair(Comp, Exp)",
		Template:    "{Comp} cannot reach {Exp} over any shared network",
	}
}

// securityGroupHasInterface requires every SecurityGroup to be applied
// to at least one interface; an orphaned group protects nothing.
func securityGroupHasInterface() requirement.Requirement {
	rule := fmt.Sprintf(`Decl sg_unattached(G).
sg_unattached(G) :- elem_class(G, %s), !sg_attached(G).
Decl sg_attached(G).
sg_attached(G) :- assoc(G, %s, _).
`, cl("infrastructure_SecurityGroup"), ml("infrastructure_SecurityGroup::appliesTo"))
	return requirement.Requirement{
		ID:          "security-group-has-interface",
		Description: "every security group is associated with some interface",
		Source:      requirement.SourceBuiltin,
		Flipped:     true,
		RuleText:    rule,
		QueryText:   "sg_unattached(G)",
		Template:    "{G} is not associated with any network interface",
	}
}

// saasOverHTTPSOnly is grounded in scenario S6: a component that consumes
// a SaaS-flagged SoftwareInterface must be deployed on a node guarded by
// at least one security group carrying a single-port 443 INGRESS rule.
// A node with no security group at all is outside this requirement's
// reach (node_sg never holds for it) — that gap is a distinct concern
// from "is 443 the only open ingress port", not this one.
func saasOverHTTPSOnly() requirement.Requirement {
	rule := fmt.Sprintf(`Decl node_sg(Node, Group).
node_sg(Node, Group) :- assoc(Node, %[1]s, Iface), assoc(Group, %[2]s, Iface).

Decl has_good_rule(Group).
has_good_rule(Group) :- assoc(Group, %[3]s, Rule), attr(Rule, %[4]s, 443), attr(Rule, %[5]s, 443), attr(Rule, %[6]s, "INGRESS").

Decl node_protected(Node).
node_protected(Node) :- node_sg(Node, Group), has_good_rule(Group).

Decl saas_violation(Comp).
saas_violation(Comp) :-
  elem_class(Comp, %[7]s), assoc(Comp, %[8]s, Iface2),
  elem_class(Iface2, %[9]s), attr(Iface2, %[10]s, /true),
  assoc(Dep, %[11]s, Comp), assoc(Dep, %[12]s, Node),
  node_sg(Node, _), !node_protected(Node).
`, ml("infrastructure_ComputingNode::ifaces"), ml("infrastructure_SecurityGroup::appliesTo"),
		ml("infrastructure_SecurityGroup::rules"), ml("infrastructure_SecurityGroupRule::fromPort"),
		ml("infrastructure_SecurityGroupRule::toPort"), ml("infrastructure_SecurityGroupRule::kind"),
		cl("application_SoftwareComponent"), ml("application_SoftwareComponent::consumedInterfaces"),
		cl("application_SoftwareInterface"), ml("application_SoftwareInterface::isSaaS"),
		ml("commons_Deployment::component"), ml("commons_Deployment::node"))
	return requirement.Requirement{
		ID:          "external-saas-over-https",
		Description: "external SaaS interfaces are reached only through 443 INGRESS rules",
		Source:      requirement.SourceBuiltin,
		Flipped:     true,
		RuleText:    rule,
		QueryText:   "saas_violation(Comp)",
		Template:    "{Comp} reaches a SaaS interface without a 443-only INGRESS rule in front of it",
	}
}
