package graphstore

// Cypher statements. Values are always passed as parameters; the only dynamic
// part of an update is the $props map whose keys come from patchProps.
const (
	createTaskQuery = `
CREATE (t:Task {
  id: randomUUID(),
  title: $title,
  description: $description,
  completed: $completed,
  dueDate: $dueDate,
  reminderTime: $reminderTime,
  category: $category,
  priority: $priority,
  repeatType: $repeatType,
  repeatInterval: $repeatInterval,
  repeatEndDate: $repeatEndDate,
  repeatDaysOfWeek: $repeatDaysOfWeek,
  notes: $notes,
  symbol: $symbol,
  createdAt: datetime(),
  updatedAt: datetime()
})
WITH t
OPTIONAL MATCH (c:Category {id: $category})
FOREACH (_ IN CASE WHEN c IS NULL THEN [] ELSE [1] END | MERGE (t)-[:BELONGS_TO]->(c))
RETURN t`

	getTaskQuery = `MATCH (t:Task {id: $id}) RETURN t`

	listTasksQuery = `MATCH (t:Task) RETURN t`

	updateTaskQuery = `
MATCH (t:Task {id: $id})
SET t += $props, t.updatedAt = datetime()
RETURN t`

	deleteTaskQuery = `MATCH (t:Task {id: $id}) DETACH DELETE t RETURN count(t) AS deleted`

	createCategoryQuery = `
CREATE (c:Category {id: randomUUID(), name: $name, color: $color, icon: $icon})
RETURN c`

	getCategoryQuery = `MATCH (c:Category {id: $id}) RETURN c`

	listCategoriesQuery = `MATCH (c:Category) RETURN c`

	updateCategoryQuery = `
MATCH (c:Category {id: $id})
SET c += $props
RETURN c`

	// DETACH drops BELONGS_TO edges; Task.category is left as is.
	deleteCategoryQuery = `MATCH (c:Category {id: $id}) DETACH DELETE c RETURN count(c) AS deleted`

	assignQuery = `
OPTIONAL MATCH (t:Task {id: $taskId})
OPTIONAL MATCH (c:Category {id: $categoryId})
WITH t, c, (t IS NOT NULL AND c IS NOT NULL) AS ok
FOREACH (_ IN CASE WHEN ok THEN [1] ELSE [] END |
  MERGE (t)-[:BELONGS_TO]->(c)
  SET t.category = $categoryId, t.updatedAt = datetime())
WITH t, c, ok
OPTIONAL MATCH (t)-[old:BELONGS_TO]->(other:Category)
WHERE ok AND other.id <> $categoryId
DELETE old
RETURN DISTINCT t IS NOT NULL AS hasTask, c IS NOT NULL AS hasCategory`

	unassignQuery = `
OPTIONAL MATCH (t:Task {id: $taskId})
OPTIONAL MATCH (t)-[old:BELONGS_TO]->(:Category)
DELETE old
WITH DISTINCT t
FOREACH (_ IN CASE WHEN t IS NULL THEN [] ELSE [1] END |
  SET t.category = null, t.updatedAt = datetime())
RETURN t IS NOT NULL AS hasTask`

	tasksByCategoryQuery = `
MATCH (t:Task)-[:BELONGS_TO]->(:Category {id: $categoryId})
RETURN t`
)
