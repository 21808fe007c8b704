package driver

const (
	GetAllEntitiesQuery = `
		MATCH (n:Entity)
		RETURN n.id AS id, n.name AS name, n.type AS type,
			n.description AS description, n.confidence AS confidence,
			n.mention_count AS mention_count
		LIMIT $limit
	`

	GetAllEdgesQuery = `
		MATCH (s:Entity)-[e]->(t:Entity)
		RETURN s.id AS source, t.id AS target, type(e) AS type,
			s.name AS source_name, t.name AS target_name
	`

	GetSubgraphNodesQuery = `
		MATCH (n:Entity)
		WHERE n.id IN $ids
		RETURN n.id AS id, n.name AS name, n.type AS type,
			n.description AS description, n.confidence AS confidence,
			n.mention_count AS mention_count
	`

	GetSubgraphEdgesQuery = `
		MATCH (s:Entity)-[e]->(t:Entity)
		WHERE s.id IN $ids AND t.id IN $ids
		RETURN s.id AS source, t.id AS target, type(e) AS type,
			s.name AS source_name, t.name AS target_name
	`

	GetChangedEntityIDsQuery = `
		MATCH (n:Entity)
		WHERE n.updated_at >= $since OR n.created_at >= $since
		RETURN n.id AS id
	`

	UpdateEntityImportanceQuery = `
		MATCH (n:Entity {id: $id})
		SET n.importance = $importance,
			n.importance_rank = $rank,
			n.importance_percentile = $percentile,
			n.importance_updated_at = $updated_at
		RETURN n.id AS id
	`
)
