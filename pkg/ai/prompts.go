package ai

// Prompts for the extraction and summarization models. Each prompt is a
// fmt template; the call sites document the expected arguments.

// PromptExtractEntities extracts named entities from a single text unit.
// Arguments: entity type list, current date, unit text.
const PromptExtractEntities = `You are an expert information extraction system specialized in news analysis.

-Goal-
Given a news text, identify all entities present in the text.

-Steps-
1. Identify all entities. For each entity, extract:
- name: the name of the entity, capitalized exactly as commonly written
- entity_type: one of the following types: [%s]
- description: a comprehensive description of the entity's attributes and activities as described in this text
- attributes: key facts about the entity as key/value pairs (e.g. role, date, amount)

2. Only extract entities that are clearly identified in the text. Do not invent entities.

3. If the text contains no identifiable entities, return an empty list and set no_entities to true.

The current date is %s. Resolve relative time references against it.

-Text-
%s`

// PromptExtractRelationships extracts relationships between previously
// identified entities. Arguments: current date, entity list, unit text.
const PromptExtractRelationships = `You are an expert information extraction system specialized in news analysis.

-Goal-
Given a news text and a list of entities found in it, identify all relationships between those entities.

-Steps-
1. For each pair of related entities, extract:
- source_entity: name of the source entity, exactly as it appears in the entity list
- target_entity: name of the target entity, exactly as it appears in the entity list
- relation_type: a short verb phrase naming the relation (e.g. ACQUIRED, CEO_OF, LOCATED_IN)
- description: an explanation of why the entities are related, grounded in the text
- strength: a numeric score between 0.0 and 1.0 indicating how strongly the text supports the relationship

2. Only use entities from the provided list. Do not introduce new entities.

The current date is %s. Resolve relative time references against it.

-Entities-
%s

-Text-
%s`

// PromptExtractClaims extracts claims attributed to entities. Arguments:
// claim type list, current date, entity list, unit text.
const PromptExtractClaims = `You are an expert information extraction system specialized in news analysis.

-Goal-
Given a news text and a list of entities found in it, identify all claims made by or about those entities.

-Steps-
1. For each claim, extract:
- subject: the entity making or being the subject of the claim, from the entity list
- object: the entity the claim is about, or NONE when the claim has no second entity
- claim_type: one of the following types: [%s]
- status: TRUE when the claim is confirmed, FALSE when it is refuted, SUSPECTED otherwise
- description: a detailed description of the claim with supporting evidence from the text
- period: the time period the claim refers to, in ISO-8601 format when determinable
- quotes: direct quotes from the text supporting the claim

2. Only use entities from the provided list.

The current date is %s. Resolve relative time references against it.

-Entities-
%s

-Text-
%s`

// PromptCommunityReport turns a community's relationship document into a
// structured report. Argument: community document.
const PromptCommunityReport = `You are an expert news analyst writing a report about a community of related entities.

-Goal-
Given the list of relationships below, which all belong to one community of entities, write a report covering:
- title: a short name for the community naming its key entities
- summary: an executive summary of the community's structure, its entities and notable information about them
- impact_severity_rating: a float score between 0 and 10 representing the severity of impact posed by entities within the community
- rating_explanation: a single sentence explaining the rating

Ground every statement in the relationships provided. Do not invent information.

-Relationships-
%s`
