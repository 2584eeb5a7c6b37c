// Package cli implements agronomy-admin, the operator command line.
//
// Commands run against the same services as the API, loaded from the
// environment configuration:
//
//	agronomy-admin migrate
//	agronomy-admin create-superuser --email root@example.com --password ...
//	agronomy-admin create-org --name "Acme Farms"
//	agronomy-admin add-member --org <uuid> --email grower@example.com --role AGRONOMIST
//	agronomy-admin list-orgs
//	agronomy-admin sweep
//
// The password of create-superuser may also come from
// AGRONOMY_ADMIN_PASSWORD so it stays out of shell history.
package cli
