package action

import "fmt"

const (
	msgNotCreated = "Instance is not created. Please create it first."
	msgStopping   = "Stopping the instance..."
	msgConnecting = "Connecting to Fusion..."
)

func msgAlreadyStatus(status string) string {
	return fmt.Sprintf("The machine is already %s.", status)
}

func msgRegisteringELB(instanceID, elbName string) string {
	return fmt.Sprintf("Registering %s at ELB %s...", instanceID, elbName)
}

func msgDeregisteringELB(instanceID, elbName string) string {
	return fmt.Sprintf("Deregistering %s from ELB %s...", instanceID, elbName)
}
