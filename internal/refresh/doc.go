// Package refresh drives whole-window refreshes.
//
// A Controller holds the date and hour picked by the user and refreshes the nodes, pods
// and events collections for that hour, either through the regular routes or, when
// forced, through the report routes. A ClusterChangeReactor triggers a normal refresh
// whenever the selected cluster changes.
package refresh
