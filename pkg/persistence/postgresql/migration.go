package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE instance_snapshots (
				instance_id UUID PRIMARY KEY,
				definition_name VARCHAR(255) NOT NULL,
				definition_version VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'suspended', 'failed', 'completed')),
				last_sequence BIGINT NOT NULL,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_instance_snapshots_status ON instance_snapshots(status);
			CREATE INDEX idx_instance_snapshots_definition ON instance_snapshots(definition_name, definition_version);
			CREATE INDEX idx_instance_snapshots_updated_at ON instance_snapshots(updated_at);
		`,
		2: `
			CREATE TABLE instance_events (
				instance_id UUID NOT NULL,
				sequence BIGINT NOT NULL,
				type VARCHAR(64) NOT NULL,
				utc_timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
				document JSONB NOT NULL,
				PRIMARY KEY (instance_id, sequence)
			);

			CREATE INDEX idx_instance_events_type ON instance_events(type);
		`,
	}
}
