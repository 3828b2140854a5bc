package targeting

// SelectTarget returns the first entity of type EnemyUnitType in scene order.
// Later matches are never considered.
func SelectTarget(entities []Entity) (Entity, bool) {
	for _, entity := range entities {
		if entity.Type == EnemyUnitType {
			return entity, true
		}
	}
	return Entity{}, false
}
