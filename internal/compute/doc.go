// Package compute is the cloud side of the provider: it turns a finalized
// provider configuration into EC2 and classic ELB API clients and exposes the
// handful of instance and load balancer operations the actions need.
package compute
