package qos

// Incompatibility reports one offending policy id, mirroring the
// RequestedIncompatibleQosStatus / OfferedIncompatibleQosStatus policy
// list of spec §4.4.
type Incompatibility struct {
	PolicyID int
	Name     string
}

// CheckCompatibility evaluates the full directional rule table of spec
// §4.4 between an offered (writer-side) and requested (reader-side) QoS,
// returning every offending policy.
func CheckCompatibility(offered, requested EndpointQos) []Incompatibility {
	var out []Incompatibility

	if offered.Durability.Kind < requested.Durability.Kind {
		out = append(out, Incompatibility{DurabilityQosPolicyID, "DURABILITY_QOS_POLICY_ID"})
	}

	if offered.Presentation.AccessScope < requested.Presentation.AccessScope ||
		offered.Presentation.CoherentAccess != requested.Presentation.CoherentAccess ||
		offered.Presentation.OrderedAccess != requested.Presentation.OrderedAccess {
		out = append(out, Incompatibility{PresentationQosPolicyID, "PRESENTATION_QOS_POLICY_ID"})
	}

	if requested.Deadline.Period > 0 {
		if offered.Deadline.Period == 0 || offered.Deadline.Period > requested.Deadline.Period {
			out = append(out, Incompatibility{DeadlineQosPolicyID, "DEADLINE_QOS_POLICY_ID"})
		}
	}

	if offered.LatencyBudget.Duration > requested.LatencyBudget.Duration {
		out = append(out, Incompatibility{LatencyBudgetQosPolicyID, "LATENCYBUDGET_QOS_POLICY_ID"})
	}

	if offered.Liveliness.Kind < requested.Liveliness.Kind ||
		offered.Liveliness.LeaseDuration > requested.Liveliness.LeaseDuration {
		out = append(out, Incompatibility{LivelinessQosPolicyID, "LIVELINESS_QOS_POLICY_ID"})
	}

	if offered.Reliability.Kind < requested.Reliability.Kind {
		out = append(out, Incompatibility{ReliabilityQosPolicyID, "RELIABILITY_QOS_POLICY_ID"})
	}

	if offered.DestinationOrder.Kind < requested.DestinationOrder.Kind {
		out = append(out, Incompatibility{DestinationOrderQosPolicyID, "DESTINATIONORDER_QOS_POLICY_ID"})
	}

	if offered.Ownership.Kind != requested.Ownership.Kind {
		out = append(out, Incompatibility{OwnershipQosPolicyID, "OWNERSHIP_QOS_POLICY_ID"})
	}

	if !dataRepresentationCompatible(offered.DataRepresentation, requested.DataRepresentation) {
		out = append(out, Incompatibility{DataRepresentationQosPolicyID, "DATA_REPRESENTATION_QOS_POLICY_ID"})
	}

	return out
}

// Compatible is a convenience wrapper for the common case of only needing a
// boolean.
func Compatible(offered, requested EndpointQos) bool {
	return len(CheckCompatibility(offered, requested)) == 0
}

func dataRepresentationCompatible(offered, requested DataRepresentationQos) bool {
	offeredValue := DefaultDataRepresentation
	if len(offered.Value) > 0 {
		offeredValue = offered.Value[0]
	}
	if len(requested.Value) == 0 {
		return offeredValue == DefaultDataRepresentation
	}
	for _, v := range requested.Value {
		if v == offeredValue {
			return true
		}
	}
	return false
}
