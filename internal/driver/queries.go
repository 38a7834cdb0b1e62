package driver

const (
	saveIdentityNodeQuery = `
		MERGE (n:Identity {key: $key, batch_id: $batch_id})
		SET n.sources = $sources,
			n.confidence = $confidence,
			n.is_master = $is_master,
			n.archived_at = $archived_at
		RETURN n.key AS key
	`

	saveIdentityEdgeQuery = `
		MATCH (source:Identity {key: $from_key, batch_id: $batch_id})
		MATCH (target:Identity {key: $to_key, batch_id: $batch_id})
		CREATE (source)-[e:LINKED_TO {
			relationship: $relationship,
			confidence: $confidence,
			valid_from: $valid_from,
			valid_to: $valid_to,
			batch_id: $batch_id
		}]->(target)
		RETURN e.relationship AS relationship
	`
)
