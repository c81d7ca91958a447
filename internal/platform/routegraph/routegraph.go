// Package routegraph stages a routing graph's nodes and edges in Neo4j
// during construction, matching internal/platform/neo4jdb's
// connection pattern (NewFromEnv / driver session handling). A graph
// database is a natural staging area for a node/edge structure mid-build —
// stages/routedata flattens the result to the final binary files; Neo4j is
// never the delivery format for the `<name>.dat`/`.idx` router outputs.
package routegraph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Store accumulates route nodes/edges, then replays them back out for
// flattening to disk. AllNodes and AllEdges return them in no particular
// order; callers that need an order sort the result.
type Store interface {
	PutNode(ctx context.Context, id int64, lat, lon float64) error
	PutEdge(ctx context.Context, fromID, toID, wayID int64, distanceMeters float64) error
	AllNodes(ctx context.Context) ([]GraphNode, error)
	AllEdges(ctx context.Context) ([]GraphEdge, error)
	Close(ctx context.Context) error
}

type GraphNode struct {
	ID       int64
	Lat, Lon float64
}

type GraphEdge struct {
	FromID, ToID, WayID int64
	DistanceMeters      float64
}

// MemStore is the default Store: an in-process map, used when no Neo4j URI
// is configured (the common case for a single-operator import run).
type MemStore struct {
	nodes map[int64]GraphNode
	edges []GraphEdge
}

func NewMemStore() *MemStore {
	return &MemStore{nodes: map[int64]GraphNode{}}
}

func (s *MemStore) PutNode(_ context.Context, id int64, lat, lon float64) error {
	s.nodes[id] = GraphNode{ID: id, Lat: lat, Lon: lon}
	return nil
}

func (s *MemStore) PutEdge(_ context.Context, fromID, toID, wayID int64, distanceMeters float64) error {
	s.edges = append(s.edges, GraphEdge{FromID: fromID, ToID: toID, WayID: wayID, DistanceMeters: distanceMeters})
	return nil
}

func (s *MemStore) AllNodes(context.Context) ([]GraphNode, error) {
	out := make([]GraphNode, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out, nil
}

func (s *MemStore) AllEdges(context.Context) ([]GraphEdge, error) { return s.edges, nil }
func (s *MemStore) Close(context.Context) error                   { return nil }

// Neo4jStore stages the graph in a Neo4j database via MERGE writes, for
// runs where an operator wants to inspect or query the in-progress routing
// graph with Cypher before it is flattened.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewNeo4jStore(driver neo4j.DriverWithContext, database string) *Neo4jStore {
	return &Neo4jStore{driver: driver, database: database}
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database, AccessMode: neo4j.AccessModeWrite})
}

func (s *Neo4jStore) PutNode(ctx context.Context, id int64, lat, lon float64) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)
	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, "MERGE (n:RouteNode {id: $id}) SET n.lat = $lat, n.lon = $lon",
			map[string]any{"id": id, "lat": lat, "lon": lon})
	})
	return err
}

func (s *Neo4jStore) PutEdge(ctx context.Context, fromID, toID, wayID int64, distanceMeters float64) error {
	sess := s.session(ctx)
	defer sess.Close(ctx)
	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `MATCH (a:RouteNode {id: $from}), (b:RouteNode {id: $to})
			MERGE (a)-[r:ROUTE {wayId: $way}]->(b) SET r.distance = $dist`,
			map[string]any{"from": fromID, "to": toID, "way": wayID, "dist": distanceMeters})
	})
	return err
}

func (s *Neo4jStore) AllNodes(ctx context.Context) ([]GraphNode, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)
	res, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, "MATCH (n:RouteNode) RETURN n.id, n.lat, n.lon", nil)
		if err != nil {
			return nil, err
		}
		var out []GraphNode
		for rows.Next(ctx) {
			rec := rows.Record()
			id, _ := rec.Values[0].(int64)
			lat, _ := rec.Values[1].(float64)
			lon, _ := rec.Values[2].(float64)
			out = append(out, GraphNode{ID: id, Lat: lat, Lon: lon})
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("routegraph: read nodes: %w", err)
	}
	return res.([]GraphNode), nil
}

func (s *Neo4jStore) AllEdges(ctx context.Context) ([]GraphEdge, error) {
	sess := s.session(ctx)
	defer sess.Close(ctx)
	res, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, "MATCH (a:RouteNode)-[r:ROUTE]->(b:RouteNode) RETURN a.id, b.id, r.wayId, r.distance", nil)
		if err != nil {
			return nil, err
		}
		var out []GraphEdge
		for rows.Next(ctx) {
			rec := rows.Record()
			from, _ := rec.Values[0].(int64)
			to, _ := rec.Values[1].(int64)
			way, _ := rec.Values[2].(int64)
			dist, _ := rec.Values[3].(float64)
			out = append(out, GraphEdge{FromID: from, ToID: to, WayID: way, DistanceMeters: dist})
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("routegraph: read edges: %w", err)
	}
	return res.([]GraphEdge), nil
}

func (s *Neo4jStore) Close(ctx context.Context) error { return s.driver.Close(ctx) }
