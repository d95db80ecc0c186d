// gatewayctl is the operator CLI for a running gatewayd: health checks,
// session inspection, and one-shot invocations over the HTTP API.
package main

func main() {
	Execute()
}
