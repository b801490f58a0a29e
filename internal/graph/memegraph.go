package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Link is one weighted directed edge between memes.
type Link struct {
	From   uuid.UUID `json:"from"`
	To     uuid.UUID `json:"to"`
	Weight float64   `json:"weight"`
}

// MemeGraph mirrors meme connections into Neo4j so link structure survives
// population turnover and can be queried across generations.
type MemeGraph struct {
	driver    neo4j.DriverWithContext
	decayRate float64
	logger    *zap.Logger
}

// NewMemeGraph creates a graph mirror backed by Neo4j.
func NewMemeGraph(uri, user, password string, decayRate float64, logger *zap.Logger) (*MemeGraph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &MemeGraph{driver: driver, decayRate: decayRate, logger: logger}, nil
}

// Ping verifies the Neo4j connection.
func (g *MemeGraph) Ping(ctx context.Context) error {
	return g.driver.VerifyConnectivity(ctx)
}

// Close shuts down the Neo4j driver.
func (g *MemeGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// UpsertMeme records a meme node with its kind and fitness.
func (g *MemeGraph) UpsertMeme(ctx context.Context, id uuid.UUID, kind string, fitness float64) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`MERGE (m:Meme {id: $id})
		 SET m.kind = $kind, m.fitness = $fitness, m.updated_at = datetime()`,
		map[string]interface{}{
			"id":      id.String(),
			"kind":    kind,
			"fitness": fitness,
		})
	if err != nil {
		return fmt.Errorf("upsert meme: %w", err)
	}
	return nil
}

// SetLink creates or updates a weighted edge between two memes. Both nodes
// are merged so a link can be mirrored before its endpoints.
func (g *MemeGraph) SetLink(ctx context.Context, link *Link) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`MERGE (a:Meme {id: $from})
		 MERGE (b:Meme {id: $to})
		 MERGE (a)-[r:LINKED_TO]->(b)
		 SET r.weight = $weight, r.updated_at = datetime()`,
		map[string]interface{}{
			"from":   link.From.String(),
			"to":     link.To.String(),
			"weight": link.Weight,
		})
	if err != nil {
		return fmt.Errorf("set link: %w", err)
	}
	return nil
}

// Neighbors returns all outgoing links of a meme.
func (g *MemeGraph) Neighbors(ctx context.Context, id uuid.UUID) ([]*Link, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (a:Meme {id: $id})-[r:LINKED_TO]->(b:Meme)
		 RETURN b.id, r.weight`,
		map[string]interface{}{"id": id.String()})
	if err != nil {
		return nil, fmt.Errorf("neighbors: %w", err)
	}

	var links []*Link
	for result.Next(ctx) {
		rec := result.Record()
		toRaw, _ := rec.Get("b.id")
		weight, _ := rec.Get("r.weight")

		to, err := uuid.Parse(toRaw.(string))
		if err != nil {
			continue
		}
		links = append(links, &Link{
			From:   id,
			To:     to,
			Weight: weight.(float64),
		})
	}
	return links, nil
}

// RemoveMeme deletes a meme node and all of its edges.
func (g *MemeGraph) RemoveMeme(ctx context.Context, id uuid.UUID) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`MATCH (m:Meme {id: $id}) DETACH DELETE m`,
		map[string]interface{}{"id": id.String()})
	if err != nil {
		return fmt.Errorf("remove meme: %w", err)
	}
	return nil
}

// OnTick implements the clock listener contract. Link weights decay over
// time; edges that reach zero stay in the graph until their meme is removed.
func (g *MemeGraph) OnTick(worldTime time.Time) {
	ctx := context.Background()
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`MATCH ()-[r:LINKED_TO]->()
		 WHERE r.weight > 0
		 SET r.weight = CASE WHEN r.weight - $decay < 0 THEN 0 ELSE r.weight - $decay END`,
		map[string]interface{}{"decay": g.decayRate})
	if err != nil {
		g.logger.Warn("link decay tick failed", zap.Error(err))
	}
}
