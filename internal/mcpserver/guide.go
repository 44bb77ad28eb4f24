package mcpserver

// TreeGuide explains the workspace tree model to MCP clients before they
// create or move nodes.
const TreeGuide = `# Lattice Workspace Tree

The workspace holds three independent trees, one per kind:
` + "`api`" + ` (REST endpoints), ` + "`scheduler`" + ` (jobs) and ` + "`database`" + ` (tables).
Folders and items of different kinds never mix.

## Nodes

- **Folders** group other folders and items. A folder with no parent is a
  root folder.
- **Items** are leaves. An item may sit at the root or inside a folder of
  the same kind.
- Every node has an ` + "`id`" + `. Ids are generated by the server; use the ids
  returned by get_tree or search.

## Moving nodes (move_node)

A move names the dragged node, a target node and a position:

| position | effect |
|----------|--------|
| before   | place the node just before the target, in the target's folder |
| after    | place the node just after the target, in the target's folder |
| onto     | place the node first inside the target folder |

A move is rejected (applied: false) when:

1. either id is unknown, or both ids are the same;
2. the dragged node is at the root (root nodes stay at the root);
3. the position is before/after and the target is at the root;
4. the position is onto and the target is not a folder;
5. the target is inside the dragged folder;
6. under the restrictive policy, before/after would change folders.

## Deleting

Deleting a folder deletes every nested folder and item of the same kind,
and selects the deleted folder's parent.
`
