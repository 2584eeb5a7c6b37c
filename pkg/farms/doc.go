// Package farms stores farms and the fields inside them.
//
// Farms belong to an organization and optionally to an owning user.
// Privileged roles see every farm of their organization; other roles see
// the farms they own and the fields on those farms. Service applies the
// rbac rules and stamps organization and owner from the resolved tenant;
// the PostgresStore only runs queries.
package farms
